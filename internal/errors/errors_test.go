package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) { r.reported = append(r.reported, ee) }
func (r *recordingReporter) IsEnabled() bool              { return true }

func TestBuilderSetsFields(t *testing.T) {
	ee := New(fmt.Errorf("camera offline")).
		Component("capture").
		Category(CategoryCapture).
		Context("source_id", "/dev/video0").
		Build()

	assert.Equal(t, "camera offline", ee.Error())
	assert.Equal(t, "capture", ee.GetComponent())
	assert.Equal(t, CategoryCapture, ee.Category)
	assert.Equal(t, "/dev/video0", ee.GetContext()["source_id"])
	assert.False(t, ee.Timestamp.IsZero())
}

func TestIsCategoryWalksWrappedErrors(t *testing.T) {
	inner := New(NewStd("save failed")).Category(CategoryPersistence).Build()
	outer := New(fmt.Errorf("upsert bed-1: %w", inner)).Category(CategoryGeneric).Build()

	assert.True(t, IsCategory(outer, CategoryPersistence))
	assert.True(t, IsCategory(outer, CategoryGeneric))
	assert.False(t, IsCategory(outer, CategoryValidation))
	assert.False(t, IsCategory(fmt.Errorf("plain"), CategoryGeneric))
}

func TestIsNotFound(t *testing.T) {
	err := Newf("source %q not found", "cam-1").Category(CategoryNotFound).Build()
	assert.True(t, IsNotFound(err))
	assert.True(t, Is(err, &EnhancedError{Category: CategoryNotFound}))
}

func TestSentinelMatching(t *testing.T) {
	sentinel := NewStd("sentinel")
	err := New(fmt.Errorf("wrap: %w", sentinel)).Category(CategoryState).Build()
	assert.True(t, Is(err, sentinel))
}

func TestCategoryDetectionHeuristics(t *testing.T) {
	tests := []struct {
		msg  string
		want ErrorCategory
	}{
		{"context deadline exceeded", CategoryTimeout},
		{"dial tcp: connection refused", CategoryNetwork},
		{"invalid boundary", CategoryValidation},
		{"something else", CategoryGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, New(NewStd(tt.msg)).Build().Category)
		})
	}
}

func TestTelemetrySkipsExpectedCategories(t *testing.T) {
	rep := &recordingReporter{}
	SetTelemetryReporter(rep)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	New(NewStd("bad input")).Category(CategoryValidation).Build()
	New(NewStd("missing")).Category(CategoryNotFound).Build()
	New(NewStd("relay down")).Category(CategoryChannel).Build()

	require.Len(t, rep.reported, 1)
	assert.Equal(t, CategoryChannel, rep.reported[0].Category)
}

func TestScrubMessage(t *testing.T) {
	got := scrubMessage("post https://api.telegram.org/bot123:abc/sendPhoto?chat_id=9 failed")
	assert.Equal(t, "post https://api.telegram.org/[PATH] failed", got)

	got = scrubMessage("dial tcp://user:pw@broker:1883")
	assert.NotContains(t, got, "pw")
}

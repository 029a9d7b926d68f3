// Package vision is the client for the remote pose-estimation and interactive
// segmentation service.
package vision

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/fraktlabs/fencewatch/internal/errors"
	"github.com/fraktlabs/fencewatch/internal/httpclient"
	"github.com/fraktlabs/fencewatch/internal/logger"
)

const (
	posePath    = "/vision/pose"
	segmentPath = "/vision/segment"

	statusOK = "ok"
)

// Keypoint is one body landmark. X and Y are normalized to the frame.
type Keypoint struct {
	Name string  `json:"name,omitempty"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z,omitempty"`
}

// Detection is one detected person.
type Detection struct {
	Keypoints      []Keypoint `json:"keypoints"`
	WorldKeypoints []Keypoint `json:"world_keypoints,omitempty"`
}

// PoseEstimator runs pose inference on an encoded frame.
type PoseEstimator interface {
	Pose(ctx context.Context, frame []byte) ([]Detection, error)
}

// Segmenter returns a confidence mask, as a data URL, for the object under
// the normalized point (x, y).
type Segmenter interface {
	Segment(ctx context.Context, frame []byte, x, y float64) (string, error)
}

type envelope struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type poseResponse struct {
	envelope
	Detections []Detection `json:"detections"`
}

type segmentResponse struct {
	envelope
	Detections struct {
		CategoryMask   string `json:"category_mask,omitempty"`
		ConfidenceMask string `json:"confidence_mask,omitempty"`
	} `json:"detections"`
}

// Client talks to the vision service over HTTP. It implements both
// PoseEstimator and Segmenter.
type Client struct {
	baseURL string
	http    *httpclient.Client
}

// NewClient creates a client for the service at baseURL. A non-positive
// timeout uses the http client default.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpclient.New(&httpclient.Config{DefaultTimeout: timeout}),
	}
}

// HTTPClient returns the underlying transport wrapper.
func (c *Client) HTTPClient() *httpclient.Client {
	return c.http
}

// Pose sends a JPEG frame for pose inference and returns normalized detections.
func (c *Client) Pose(ctx context.Context, frame []byte) ([]Detection, error) {
	if len(frame) == 0 {
		return nil, errors.Newf("empty frame").
			Category(errors.CategoryInference).
			Context("operation", "pose").
			Build()
	}

	start := time.Now()
	var resp poseResponse
	err := c.http.PostMultipart(ctx, c.baseURL+posePath,
		map[string]string{"normalized": "true"},
		[]httpclient.FormFile{imageFile(frame)},
		&resp)
	if err == nil {
		err = resp.check()
	}
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryInference).
			Context("operation", "pose").
			Timing("pose", time.Since(start)).
			Build()
	}

	GetLogger().Trace("pose inference complete",
		logger.Int("detections", len(resp.Detections)),
		logger.Duration("elapsed", time.Since(start)))
	return resp.Detections, nil
}

// Segment asks for the object under (x, y) and returns its confidence mask.
func (c *Client) Segment(ctx context.Context, frame []byte, x, y float64) (string, error) {
	var resp segmentResponse
	err := c.http.PostMultipart(ctx, c.baseURL+segmentPath,
		map[string]string{
			"x":          strconv.FormatFloat(x, 'f', -1, 64),
			"y":          strconv.FormatFloat(y, 'f', -1, 64),
			"normalized": "true",
		},
		[]httpclient.FormFile{imageFile(frame)},
		&resp)
	if err == nil {
		err = resp.check()
	}
	if err == nil && resp.Detections.ConfidenceMask == "" {
		err = errors.NewStd("response carries no confidence mask")
	}
	if err != nil {
		return "", errors.New(err).
			Category(errors.CategoryInference).
			Context("operation", "segment").
			Context("x", x).
			Context("y", y).
			Build()
	}
	return resp.Detections.ConfidenceMask, nil
}

func (e envelope) check() error {
	if e.Status != "" && e.Status != statusOK {
		msg := e.Error
		if msg == "" {
			msg = "vision service reported failure"
		}
		return errors.NewStd(msg)
	}
	return nil
}

func imageFile(frame []byte) httpclient.FormFile {
	return httpclient.FormFile{
		Field:       "image",
		FileName:    "frame.jpg",
		ContentType: "image/jpeg",
		Data:        frame,
	}
}

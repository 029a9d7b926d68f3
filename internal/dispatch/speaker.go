package dispatch

import (
	"context"
	"fmt"
	"os/exec"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

// espeak-ng words per minute at rate 1.0
const baseWordsPerMinute = 175

var defaultSpeechArgs = []string{"-v", "{lang}", "-s", "{wpm}", "{text}"}

// CommandSpeaker speaks by running a text-to-speech command such as espeak-ng.
// Arguments may contain {lang}, {wpm} and {text} placeholders; when no
// argument mentions {text} the text is appended last.
type CommandSpeaker struct {
	command string
	args    []string
	rate    float64
}

// NewCommandSpeaker creates a speaker. Empty args use espeak-ng style
// "-v {lang} -s {wpm} {text}".
func NewCommandSpeaker(command string, args []string, rate float64) *CommandSpeaker {
	if len(args) == 0 {
		args = defaultSpeechArgs
	}
	if rate <= 0 {
		rate = 1
	}
	return &CommandSpeaker{command: command, args: slices.Clone(args), rate: rate}
}

// Speak runs the command and waits for it to exit.
func (s *CommandSpeaker) Speak(ctx context.Context, text, lang string) error {
	args := s.buildArgs(text, lang)

	// command and args come from configuration
	cmd := exec.CommandContext(ctx, s.command, args...) //nolint:gosec // configured command
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("speech command %s failed: %w, output: %s", s.command, err, truncate(string(out), 256))
	}
	return nil
}

func (s *CommandSpeaker) buildArgs(text, lang string) []string {
	voice := voiceName(lang)
	wpm := strconv.Itoa(int(baseWordsPerMinute * s.rate))

	hasText := false
	args := make([]string, 0, len(s.args)+1)
	for _, a := range s.args {
		if strings.Contains(a, "{text}") {
			hasText = true
		}
		a = strings.NewReplacer("{lang}", voice, "{wpm}", wpm, "{text}", text).Replace(a)
		args = append(args, a)
	}
	if !hasText {
		args = append(args, text)
	}
	return args
}

// voiceName maps a BCP 47 tag to an espeak-ng voice name, e.g. es-MX -> es-mx.
func voiceName(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil || tag == language.Und {
		return "en"
	}
	return strings.ToLower(tag.String())
}

package websocket

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakePresigner returns deterministic links and can fail per blob name.
type fakePresigner struct {
	failFor map[string]bool
	calls   int
}

func (p *fakePresigner) Presign(_ context.Context, blobName string, _ time.Duration) (string, error) {
	p.calls++
	if p.failFor[blobName] {
		return "", errors.New("presign unavailable")
	}
	return "https://blob.test/" + blobName + "?sig=abc", nil
}

func TestRewriteCitationsNumbersByFirstAppearance(t *testing.T) {
	p := &fakePresigner{}
	out := RewriteCitations(context.Background(),
		"See {guide.pdf} and {spec.docx} for details.", p)

	assert.Equal(t,
		"See [1](https://blob.test/guide.pdf?sig=abc) and [2](https://blob.test/spec.docx?sig=abc) for details.",
		out)
}

func TestRewriteCitationsReusesNumberForRepeats(t *testing.T) {
	p := &fakePresigner{}
	out := RewriteCitations(context.Background(),
		"{a.pdf} then {b.pdf} then {a.pdf} again", p)

	assert.Equal(t,
		"[1](https://blob.test/a.pdf?sig=abc) then [2](https://blob.test/b.pdf?sig=abc) then [1](https://blob.test/a.pdf?sig=abc) again",
		out)
	assert.Equal(t, 2, p.calls, "each unique filename presigned once")
}

func TestRewriteCitationsLeavesNonFilenamesAlone(t *testing.T) {
	p := &fakePresigner{}
	text := `The JSON is {"key": "value"} and {placeholder} stays.`

	assert.Equal(t, text, RewriteCitations(context.Background(), text, p))
	assert.Zero(t, p.calls)
}

func TestRewriteCitationsPresignFailureKeepsToken(t *testing.T) {
	p := &fakePresigner{failFor: map[string]bool{"broken.pdf": true}}
	out := RewriteCitations(context.Background(),
		"{good.pdf} and {broken.pdf}", p)

	assert.Equal(t, "[1](https://blob.test/good.pdf?sig=abc) and {broken.pdf}", out)
}

func TestRewriteCitationsNilPresigner(t *testing.T) {
	text := "See {guide.pdf}."
	assert.Equal(t, text, RewriteCitations(context.Background(), text, nil))
}

func TestRewriteCitationsUnclosedBrace(t *testing.T) {
	p := &fakePresigner{}
	text := "dangling {guide.pdf"
	assert.Equal(t, text, RewriteCitations(context.Background(), text, p))
}

func TestLooksLikeFilename(t *testing.T) {
	assert.True(t, looksLikeFilename("report.pdf"))
	assert.True(t, looksLikeFilename("a.b.c.txt"))
	assert.False(t, looksLikeFilename(""))
	assert.False(t, looksLikeFilename("no extension"))
	assert.False(t, looksLikeFilename(".hidden"))
	assert.False(t, looksLikeFilename("trailingdot."))
	assert.False(t, looksLikeFilename("noext"))
}

package layouts

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Writer streams markup to the response and remembers the first write
// error, so view functions read top to bottom without error checks on
// every line.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Raw writes trusted markup verbatim.
func (hw *Writer) Raw(s string) {
	if hw.err != nil {
		return
	}
	_, hw.err = io.WriteString(hw.w, s)
}

// Text writes user-controlled text, HTML-escaped.
func (hw *Writer) Text(s string) {
	hw.Raw(templ.EscapeString(s))
}

// Component renders a nested component into the same stream.
func (hw *Writer) Component(ctx context.Context, c templ.Component) {
	if hw.err != nil || c == nil {
		return
	}
	hw.err = c.Render(ctx, hw.w)
}

// Err returns the first error encountered.
func (hw *Writer) Err() error {
	return hw.err
}

// CSRFField writes the hidden CSRF input every POST form must carry.
func (hw *Writer) CSRFField(ctx context.Context) {
	hw.Raw(`<input type="hidden" name="csrf_token" value="`)
	hw.Text(GetCSRFToken(ctx))
	hw.Raw(`">`)
}

// Notification writes an alert box when msg is non-empty.
func (hw *Writer) Notification(msg string) {
	if msg == "" {
		return
	}
	hw.Raw(`<p class="notification" role="alert">`)
	hw.Text(msg)
	hw.Raw(`</p>`)
}

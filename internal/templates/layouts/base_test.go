package layouts

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/a-h/templ"
)

func render(t *testing.T, ctx context.Context, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	return buf.String()
}

func TestBase_NavigationFollowsAuthState(t *testing.T) {
	empty := templ.ComponentFunc(func(context.Context, io.Writer) error { return nil })

	anon := render(t, context.Background(), Base("Home", empty))
	if !strings.Contains(anon, `href="/login"`) || strings.Contains(anon, `href="/logout"`) {
		t.Error("anonymous visitors should see log in, not log out")
	}

	ctx := SetIsAuthenticated(context.Background(), true)
	authed := render(t, ctx, Base("Home", empty))
	if !strings.Contains(authed, `href="/logout"`) || !strings.Contains(authed, `href="/submit"`) {
		t.Error("signed-in users should see submit and log out")
	}
}

func TestWriter_EscapesText(t *testing.T) {
	var buf bytes.Buffer
	hw := NewWriter(&buf)
	hw.Notification(`<script>x</script>`)
	if hw.Err() != nil {
		t.Fatalf("unexpected error: %v", hw.Err())
	}
	if strings.Contains(buf.String(), "<script>") {
		t.Errorf("expected escaped output, got %q", buf.String())
	}
}

func TestWriter_CSRFField(t *testing.T) {
	var buf bytes.Buffer
	hw := NewWriter(&buf)
	hw.CSRFField(SetCSRFToken(context.Background(), "tok123"))
	if !strings.Contains(buf.String(), `name="csrf_token" value="tok123"`) {
		t.Errorf("unexpected CSRF field %q", buf.String())
	}
}

package auth

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/keyxmakerx/secrets/internal/templates/layouts"
)

// LoginPage renders the sign-in form. notification is shown above the form
// when non-empty; email pre-fills the username field after a failed try.
func LoginPage(notification, email string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := layouts.NewWriter(w)
		hw.Raw(`<section class="auth"><h1>Log in</h1>`)
		hw.Notification(notification)
		credentialForm(ctx, hw, "/login", email, "current-password", "Log in")
		googleButton(ctx, hw)
		hw.Raw(`<p>No account yet? <a href="/register">Register</a></p></section>`)
		return hw.Err()
	})
	return layouts.Base("Log in", body)
}

// RegisterPage renders the registration form.
func RegisterPage(notification, email string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := layouts.NewWriter(w)
		hw.Raw(`<section class="auth"><h1>Register</h1>`)
		hw.Notification(notification)
		credentialForm(ctx, hw, "/register", email, "new-password", "Register")
		googleButton(ctx, hw)
		hw.Raw(`<p>Already registered? <a href="/login">Log in</a></p></section>`)
		return hw.Err()
	})
	return layouts.Base("Register", body)
}

// credentialForm writes the email + password form both pages share. The
// email input is named "username" to match what the forms always posted.
func credentialForm(ctx context.Context, hw *layouts.Writer, action, email, autocomplete, submit string) {
	hw.Raw(`<form method="post" action="`)
	hw.Text(action)
	hw.Raw(`">`)
	hw.CSRFField(ctx)
	hw.Raw(`<label for="username">Email</label>`)
	hw.Raw(`<input type="email" id="username" name="username" autocomplete="email" required value="`)
	hw.Text(email)
	hw.Raw(`">`)
	hw.Raw(`<label for="password">Password</label>`)
	hw.Raw(`<input type="password" id="password" name="password" required autocomplete="`)
	hw.Text(autocomplete)
	hw.Raw(`">`)
	hw.Raw(`<button type="submit">`)
	hw.Text(submit)
	hw.Raw(`</button></form>`)
}

func googleButton(ctx context.Context, hw *layouts.Writer) {
	if !layouts.OAuthEnabled(ctx) {
		return
	}
	hw.Raw(`<a class="button google" href="/auth/google">Sign in with Google</a>`)
}

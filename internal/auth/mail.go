package auth

import (
	"fmt"
	"html"
)

func passwordResetEmail(name, link string) (string, string) {
	if name == "" {
		name = "there"
	}
	subject := "Password reset - Movie Platform"
	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
			<h2>Password reset</h2>
			<p>Hello %s,</p>
			<p>We received a request to reset the password of your account.</p>
			<p><a href="%s">Reset your password</a></p>
			<p>Or copy this link into your browser:</p>
			<p style="word-break: break-all;">%s</p>
			<p>This link expires in 1 hour. If you did not ask for it, ignore this email.</p>
		</div>
	`, html.EscapeString(name), html.EscapeString(link), html.EscapeString(link))
	return subject, body
}

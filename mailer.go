package emailauth

import (
	"fmt"
	"net/url"
)

// SigninLink builds the URL embedded in the signin email. The raw token and
// the email ride as query parameters; the email is URL encoded.
func SigninLink(domain, path, token, email string) string {
	return fmt.Sprintf("https://%s%s?token=%s&email=%s", domain, path, token, url.QueryEscape(email))
}

// SigninEmailSubject builds the subject line for the signin email.
func SigninEmailSubject(serviceName string) string {
	return fmt.Sprintf("Sign in to %s", serviceName)
}

// SigninEmailBody renders the HTML body for the signin email. The copy warns
// that the link expires and is single use, mirroring the token semantics.
func SigninEmailBody(serviceName, link, email string) string {
	return fmt.Sprintf(signinEmailTemplate, serviceName, serviceName, link, serviceName, link, link, email)
}

const signinEmailTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>%s Signin</title>
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <div style="background-color: #ffffff; border-radius: 8px; padding: 40px;">
        <h1 style="font-size: 24px; font-weight: 600;">Sign in to %s</h1>
        <p>Hello!</p>
        <p>We received a request to sign in to your account. Click the button below to complete your signin:</p>
        <div style="text-align: center;">
            <a href="%s" style="display: inline-block; background-color: #2563eb; color: #ffffff; text-decoration: none; padding: 12px 24px; border-radius: 6px;">Sign in to %s</a>
        </div>
        <p>If the button doesn't work, you can copy and paste this link into your browser:</p>
        <p><a href="%s">%s</a></p>
        <div style="background-color: #fef3c7; border: 1px solid #f59e0b; border-radius: 6px; padding: 15px; font-size: 14px;">
            <strong>Security notice:</strong> This link will expire soon and can only be used once. If you didn't request this signin, you can safely ignore this email.
        </div>
        <p style="margin-top: 40px; font-size: 14px; color: #6b7280;">This email was sent to %s</p>
    </div>
</body>
</html>`

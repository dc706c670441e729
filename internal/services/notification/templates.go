package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/magabrotheeeer/gregai-backend/internal/models"
)

var templates = template.Must(template.New("emails").Parse(`
{{define "verification"}}<html>
	<head><title>Verify your email</title></head>
	<body>
		<h1>Welcome to GregAI, {{.Name}}!</h1>
		<p>Please confirm your email address by clicking the link below.</p>
		<p><a href="{{.Link}}">Verify email</a></p>
		<p>The link expires in {{.TTL}}.</p>
	</body>
</html>{{end}}
{{define "password_reset"}}<html>
	<head><title>Password reset</title></head>
	<body>
		<h1>Password reset requested</h1>
		<p>Use the following code to reset your password:</p>
		<p style="font-size:24px;letter-spacing:4px"><strong>{{.Code}}</strong></p>
		<p>The code expires in {{.TTL}}. If you did not request a reset, ignore this email.</p>
	</body>
</html>{{end}}
{{define "wait_list"}}<html>
	<head><title>Wait List Confirmation</title></head>
	<body>
		<h1>Thank you for your interest, {{.Name}}!</h1>
		<p>We have received your request to join our wait list.</p>
		<p>We will notify you as soon as a spot becomes available.</p>
		<p>If you have any questions, feel free to contact us at <a href="mailto:info@gregthe.ai">info@gregthe.ai</a>.</p>
	</body>
</html>{{end}}
`))

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("notification.render %s: %w", name, err)
	}
	return buf.String(), nil
}

// displayName имя для обращения в письме: имя пользователя или локальная часть адреса.
func displayName(firstName, email string) string {
	if firstName != "" {
		return firstName
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}

// VerificationEmail письмо со ссылкой подтверждения адреса.
func VerificationEmail(to, firstName, link, ttl string) (models.Email, error) {
	data := struct{ Name, Link, TTL string }{displayName(firstName, to), link, ttl}
	html, err := render(models.EmailVerification, data)
	if err != nil {
		return models.Email{}, err
	}
	return models.Email{
		Kind:    models.EmailVerification,
		To:      to,
		Subject: "Verify your email address",
		Text: fmt.Sprintf("Welcome to GregAI, %s!\n\nConfirm your email address by opening this link:\n%s\n\nThe link expires in %s.",
			data.Name, link, ttl),
		HTML: html,
	}, nil
}

// PasswordResetEmail письмо с одноразовым кодом сброса пароля.
func PasswordResetEmail(to, code, ttl string) (models.Email, error) {
	data := struct{ Code, TTL string }{code, ttl}
	html, err := render(models.EmailPasswordReset, data)
	if err != nil {
		return models.Email{}, err
	}
	return models.Email{
		Kind:    models.EmailPasswordReset,
		To:      to,
		Subject: "Password reset code",
		Text: fmt.Sprintf("Your password reset code is %s.\n\nThe code expires in %s. If you did not request a reset, ignore this email.",
			code, ttl),
		HTML: html,
	}, nil
}

// WaitListEmail подтверждение записи в лист ожидания.
func WaitListEmail(to string) (models.Email, error) {
	name := displayName("", to)
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	data := struct{ Name string }{name}
	html, err := render(models.EmailWaitList, data)
	if err != nil {
		return models.Email{}, err
	}
	return models.Email{
		Kind:    models.EmailWaitList,
		To:      to,
		Subject: "Registration Confirmation",
		Text: fmt.Sprintf("Thank you for your interest, %s!\n\nWe have received your request to join our wait list and will notify you as soon as a spot becomes available.",
			data.Name),
		HTML: html,
	}, nil
}

package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/portpilot/portal/internal/domain"
)

// defaultToken and defaultRole fill gaps in a successful sign-in response.
const (
	defaultToken = "ok"
	defaultRole  = "user"
)

// LoginResult is a successful sign-in.
type LoginResult struct {
	Token string
	User  domain.User
}

// Login exchanges credentials and a reCAPTCHA token for a session token and
// user profile. Missing profile fields fall back to the submitted email, a
// generic role and empty strings.
func (c *Client) Login(ctx context.Context, email, password, recaptchaToken string) (LoginResult, error) {
	body := map[string]string{
		"email":           email,
		"password":        password,
		"recaptcha_token": recaptchaToken,
	}
	env, err := c.do(ctx, http.MethodPost, "/login", nil, body)
	if err != nil {
		return LoginResult{}, fmt.Errorf("upstream.Client.Login: %w", err)
	}

	var raw map[string]interface{}
	if len(env.User) > 0 {
		if err := json.Unmarshal(env.User, &raw); err != nil {
			c.log.WarnContext(ctx, "login response has malformed user", "error", err)
		}
	}
	fields := stringify(raw)

	u := domain.User{
		Email:       fields["email"],
		Role:        fields["role"],
		Name:        fields["name"],
		Company:     fields["company"],
		CompanyCode: fields["company_code"],
		Remark:      fields["remark"],
	}
	if u.Email == "" {
		u.Email = email
	}
	if u.Role == "" {
		u.Role = defaultRole
	}

	token := env.Token
	if token == "" {
		token = defaultToken
	}
	return LoginResult{Token: token, User: u}, nil
}

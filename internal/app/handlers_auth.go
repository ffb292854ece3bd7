package app

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	sentrygo "github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/nourabuild/advisory-service/internal/sdk/middleware"
	"github.com/nourabuild/advisory-service/internal/services/auth"
	"github.com/nourabuild/advisory-service/internal/services/oauth"
)

// socialErrorCode maps a failed social login to a response code. The second
// result reports whether the failure is server-side.
func socialErrorCode(err error) (string, bool) {
	switch {
	case errors.Is(err, oauth.ErrUnknownProvider), errors.Is(err, auth.ErrUnknownProvider):
		return ErrUnknownProvider, false
	case errors.Is(err, oauth.ErrExchangeFailed), errors.Is(err, oauth.ErrProfileFailed):
		return ErrProviderExchange, false
	case errors.Is(err, auth.ErrEmptyEmail):
		return ErrProviderEmail, false
	}
	return ErrSocialLogin, true
}

// safeRedirect keeps only same-site absolute paths.
func safeRedirect(path string) string {
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") || strings.Contains(path, "\\") {
		return ""
	}
	return path
}

func (a *App) HandleSocialLogin(c *gin.Context) {
	var req SocialLoginRequest
	if !bindJSON(c, &req) {
		return
	}

	provider, err := a.oauth.Get(req.Provider)
	if err != nil {
		writeError(c, ErrUnknownProvider, nil)
		return
	}

	profile, err := provider.Exchange(c.Request.Context(), req.Code, req.RedirectURI)
	if err != nil {
		code, internal := socialErrorCode(err)
		if internal {
			a.toSentry(c, "social_login", "exchange", sentrygo.LevelError, err)
		}
		writeError(c, code, nil)
		return
	}

	res, err := a.auth.LoginWithSocial(c.Request.Context(), profile)
	if err != nil {
		code, internal := socialErrorCode(err)
		if internal {
			a.toSentry(c, "social_login", "login", sentrygo.LevelError, err)
		}
		writeError(c, code, nil)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		User:                   res.User,
		Token:                  res.Token,
		NeedsProfileCompletion: res.NeedsProfileCompletion,
	})
}

// HandleOAuthStart redirects the browser to the provider's consent page.
func (a *App) HandleOAuthStart(c *gin.Context) {
	provider, err := a.oauth.Get(c.Param("provider"))
	if err != nil {
		writeError(c, ErrUnknownProvider, nil)
		return
	}

	state, err := a.state.Sign(string(provider.Name()), safeRedirect(c.Query("redirect")))
	if err != nil {
		a.toSentry(c, "oauth_start", "state", sentrygo.LevelError, err)
		writeError(c, ErrSocialLogin, nil)
		return
	}

	c.Redirect(http.StatusFound, provider.AuthCodeURL(state))
}

// HandleOAuthCallback finishes the redirect flow and hands the session token
// to the frontend in the URL fragment, which browsers never send to servers.
func (a *App) HandleOAuthCallback(c *gin.Context) {
	fragment := url.Values{}

	provider, err := a.oauth.Get(c.Param("provider"))
	if err != nil {
		writeError(c, ErrUnknownProvider, nil)
		return
	}

	if e := c.Query("error"); e != "" {
		fragment.Set("error", ErrProviderExchange)
		a.redirectToFrontend(c, fragment)
		return
	}

	claims, err := a.state.Verify(c.Query("state"), string(provider.Name()))
	if err != nil {
		fragment.Set("error", ErrInvalidState)
		a.redirectToFrontend(c, fragment)
		return
	}

	profile, err := provider.Exchange(c.Request.Context(), c.Query("code"), "")
	if err == nil {
		var res auth.LoginResult
		res, err = a.auth.LoginWithSocial(c.Request.Context(), profile)
		if err == nil {
			fragment.Set("token", res.Token)
			fragment.Set("needsProfileCompletion", strconv.FormatBool(res.NeedsProfileCompletion))
			if claims.Redirect != "" {
				fragment.Set("redirect", claims.Redirect)
			}
			a.redirectToFrontend(c, fragment)
			return
		}
	}

	code, internal := socialErrorCode(err)
	if internal {
		a.toSentry(c, "oauth_callback", "login", sentrygo.LevelError, err)
	}
	fragment.Set("error", code)
	a.redirectToFrontend(c, fragment)
}

func (a *App) redirectToFrontend(c *gin.Context, fragment url.Values) {
	target := strings.TrimRight(a.opts.FrontendURL, "/") + "/auth/callback#" + fragment.Encode()
	c.Redirect(http.StatusFound, target)
}

func (a *App) HandleCompleteProfile(c *gin.Context) {
	user, err := middleware.GetUser(c)
	if err != nil {
		writeError(c, ErrUnauthorized, nil)
		return
	}

	var req CompleteProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, ErrUnmarshal, nil)
		return
	}

	mobile := strings.TrimSpace(req.Mobile)
	if mobile == "" {
		if user.Mobile == nil || *user.Mobile == "" {
			writeError(c, ErrMissingFields, map[string]string{"mobile": "required"})
			return
		}
		mobile = *user.Mobile
	}
	if errCode, details := validateMobile(mobile); errCode != "" {
		writeError(c, errCode, details)
		return
	}

	updated, err := a.auth.CompleteProfile(c.Request.Context(), user.ID, auth.CompleteProfileInput{Mobile: mobile})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMobileTaken):
			writeError(c, ErrMobileTaken, nil)
		case errors.Is(err, auth.ErrUserNotFound):
			writeError(c, ErrUserNotFound, nil)
		default:
			a.toSentry(c, "complete_profile", "db", sentrygo.LevelError, err)
			writeError(c, ErrCompleteProfile, nil)
		}
		return
	}

	c.JSON(http.StatusOK, UserResponse{User: updated, NeedsProfileCompletion: auth.NeedsProfileCompletion(updated)})
}

func (a *App) HandleCurrentUser(c *gin.Context) {
	user, err := middleware.GetUser(c)
	if err != nil {
		writeError(c, ErrUnauthorized, nil)
		return
	}

	c.JSON(http.StatusOK, UserResponse{User: user, NeedsProfileCompletion: auth.NeedsProfileCompletion(user)})
}

func (a *App) HandleLogout(c *gin.Context) {
	if err := a.auth.DeleteSession(c.Request.Context(), middleware.GetToken(c)); err != nil {
		a.toSentry(c, "logout", "db", sentrygo.LevelError, err)
		writeError(c, ErrLogout, nil)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

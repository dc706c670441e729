package authcookie

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/gregai-backend/internal/config"
)

func TestWriter(t *testing.T) {
	c := New(config.Cookie{Name: "access_token", Secure: false}, time.Hour)

	rr := httptest.NewRecorder()
	c.Set(rr, "tok")
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "tok", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	assert.Equal(t, 3600, cookies[0].MaxAge)

	rr = httptest.NewRecorder()
	c.SetCrossSite(rr, "tok")
	cookies = rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, http.SameSiteNoneMode, cookies[0].SameSite)
	assert.True(t, cookies[0].Secure)

	rr = httptest.NewRecorder()
	c.Clear(rr)
	cookies = rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

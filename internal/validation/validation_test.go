package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/schoolhub/internal/errs"
)

type nested struct {
	Price float64 `json:"price" validate:"gt=0"`
}

type sampleRequest struct {
	ID       string  `param:"id" validate:"required,uuid"`
	Name     string  `json:"name" validate:"required,min=2,max=64"`
	Code     string  `json:"code" validate:"omitempty,coupon_code"`
	Currency string  `json:"currency" validate:"omitempty,currency"`
	JoinURL  string  `json:"join_url" validate:"omitempty,https_url"`
	Pricing  *nested `json:"pricing" validate:"omitempty"`
}

func (r *sampleRequest) Validate() error {
	return Struct(r)
}

type customRequest struct {
	Percent int `json:"percent"`
}

func (r *customRequest) Validate() error {
	var v CustomValidationErrors
	if r.Percent < 1 || r.Percent > 100 {
		v.Add("percent", "must be between 1 and 100")
	}
	return v.OrNil()
}

func newContext(method, body string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return e.NewContext(req, httptest.NewRecorder())
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	httpErr, ok := err.(*errs.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	out := map[string]string{}
	for _, fe := range httpErr.Errors {
		out[fe.Field] = fe.Error
	}
	return out
}

func TestBindAndValidate_TagErrors(t *testing.T) {
	c := newContext(http.MethodPost, `{"name":"x","code":"ab","currency":"usd","join_url":"http://zoom.us/j/1","pricing":{"price":0}}`)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	fe := fieldErrors(t, BindAndValidate(c, &sampleRequest{}))

	assert.Equal(t, "must be a valid UUID", fe["id"])
	assert.Equal(t, "must be at least 2 characters", fe["name"])
	assert.Contains(t, fe["code"], "3 to 32")
	assert.Equal(t, "must be a 3-letter ISO currency code", fe["currency"])
	assert.Equal(t, "must be a valid https URL", fe["join_url"])
	assert.Equal(t, "must be greater than 0", fe["pricing.price"])
}

func TestBindAndValidate_OK(t *testing.T) {
	c := newContext(http.MethodPost, `{"name":"Go basics","code":"WELCOME_10","currency":"EUR","join_url":"https://meet.jit.si/room"}`)
	c.SetParamNames("id")
	c.SetParamValues("0b6f8d1e-3a52-4c1b-9f3e-7d1a2c3b4e5f")

	req := &sampleRequest{}
	require.NoError(t, BindAndValidate(c, req))
	assert.Equal(t, "Go basics", req.Name)
}

func TestBindAndValidate_CustomErrors(t *testing.T) {
	fe := fieldErrors(t, BindAndValidate(newContext(http.MethodPost, `{"percent":150}`), &customRequest{}))
	assert.Equal(t, "must be between 1 and 100", fe["percent"])
}

func TestBindAndValidate_MalformedJSON(t *testing.T) {
	err := BindAndValidate(newContext(http.MethodPost, `{"percent":`), &customRequest{})

	httpErr, ok := err.(*errs.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	assert.Empty(t, httpErr.Errors)
}

func TestIsHTTPSURL(t *testing.T) {
	assert.True(t, IsHTTPSURL("https://zoom.us/j/123?pwd=x"))
	assert.False(t, IsHTTPSURL("http://zoom.us/j/123"))
	assert.False(t, IsHTTPSURL("https://"))
	assert.False(t, IsHTTPSURL("zoom.us"))
}

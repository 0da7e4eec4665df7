package utils

import (
	"net/http/httptest"
	"testing"
	"time"

	appErrors "stakeoption/internal/errors"
	"stakeoption/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	userID := uuid.New()
	token, err := GenerateToken(userID, models.RoleAdmin, "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.True(t, claims.IsAdmin())

	_, err = ParseToken(token, "other-secret")
	assert.Error(t, err)

	got, err := TokenUserParser("secret")(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestExpiredTokenRejected(t *testing.T) {
	token, err := GenerateToken(uuid.New(), "", "secret", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(token, "secret")
	assert.Error(t, err)
}

func TestPageFromQuery(t *testing.T) {
	app := fiber.New()
	var got Page
	app.Get("/", func(c *fiber.Ctx) error {
		got = PageFromQuery(c)
		return nil
	})

	_, err := app.Test(httptest.NewRequest("GET", "/?page=3&limit=500", nil))
	require.NoError(t, err)
	assert.Equal(t, 3, got.Number)
	assert.Equal(t, MaxPageSize, got.Size)
	assert.Equal(t, 200, got.Offset())

	_, err = app.Test(httptest.NewRequest("GET", "/?page=zero&limit=-4", nil))
	require.NoError(t, err)
	assert.Equal(t, 1, got.Number)
	assert.Equal(t, DefaultPageSize, got.Size)
	assert.Zero(t, got.Offset())
}

func TestNewListing(t *testing.T) {
	page := Page{Number: 2, Size: 20}
	assert.Equal(t, 3, NewListing(nil, page, 41).Pagination.LastPage)
	assert.Equal(t, 2, NewListing(nil, page, 40).Pagination.LastPage)

	empty := NewListing([]string{}, page, 0)
	assert.Equal(t, 1, empty.Pagination.LastPage)
	assert.Zero(t, empty.Pagination.Total)
}

func TestErrorResponse(t *testing.T) {
	app := fiber.New()
	app.Get("/domain", func(c *fiber.Ctx) error { return Error(c, appErrors.ErrInsufficientBalance) })
	app.Get("/internal", func(c *fiber.Ctx) error { return Error(c, assert.AnError) })

	resp, err := app.Test(httptest.NewRequest("GET", "/domain", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/internal", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

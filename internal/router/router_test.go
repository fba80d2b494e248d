package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/equipment-lending/internal/config"
	"github.com/iliyamo/equipment-lending/internal/database"
	"github.com/iliyamo/equipment-lending/internal/handler"
	"github.com/iliyamo/equipment-lending/internal/lock"
	"github.com/iliyamo/equipment-lending/internal/model"
	"github.com/iliyamo/equipment-lending/internal/repository"
	"github.com/iliyamo/equipment-lending/internal/service"
	"github.com/iliyamo/equipment-lending/internal/utils"
)

type APISuite struct {
	suite.Suite
	e     *echo.Echo
	store *repository.MemoryStore
	items map[string]uint64
}

func TestAPI(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	ctx := context.Background()
	log := zap.NewNop()
	cfg := config.Config{Env: "test", JWTSecret: "test-secret", AccessTTLMin: 5, BcryptCost: bcrypt.MinCost}

	s.store = repository.NewMemoryStore()
	s.Require().NoError(database.Seed(ctx, s.store, cfg.BcryptCost, log))

	ledger := service.NewLedger(s.store)
	locker := lock.NewLocalLocker()
	s.e = New(Deps{
		Cfg:          cfg,
		Log:          log,
		Auth:         handler.NewAuthHandler(cfg, s.store.Users(), log),
		Items:        handler.NewItemHandler(service.NewCatalogService(s.store, ledger, locker, log), log),
		Reservations: handler.NewReservationHandler(service.NewReservationService(s.store, ledger, locker, nil, log), log),
	})

	items, err := s.store.Items().List(ctx, model.ItemFilter{})
	s.Require().NoError(err)
	s.items = map[string]uint64{}
	for _, it := range items {
		s.items[it.Name] = it.ID
	}
}

func (s *APISuite) call(method, path, token string, body any) (int, map[string]any) {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 && rec.Header().Get(echo.HeaderContentType) != echo.MIMETextPlainCharsetUTF8 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec.Code, out
}

func (s *APISuite) login(username, password string) string {
	code, body := s.call(http.MethodPost, "/v1/auth/login", "", echo.Map{"username": username, "password": password})
	s.Require().Equal(http.StatusOK, code, body)
	access := body["access"].(map[string]any)
	return access["token"].(string)
}

func id(body map[string]any) uint64 {
	return uint64(body["id"].(float64))
}

func (s *APISuite) TestHealth() {
	code, _ := s.call(http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusOK, code)
}

func (s *APISuite) TestSignupLoginMe() {
	code, body := s.call(http.MethodPost, "/v1/auth/signup", "", echo.Map{"username": "Asha", "password": "secret1"})
	s.Require().Equal(http.StatusCreated, code)
	user := body["user"].(map[string]any)
	s.Equal("asha", user["username"])
	s.Equal("STUDENT", user["role"])

	code, _ = s.call(http.MethodPost, "/v1/auth/signup", "", echo.Map{"username": "asha", "password": "secret1"})
	s.Equal(http.StatusConflict, code)
	code, _ = s.call(http.MethodPost, "/v1/auth/signup", "", echo.Map{"username": "ab", "password": "secret1"})
	s.Equal(http.StatusBadRequest, code)
	code, _ = s.call(http.MethodPost, "/v1/auth/signup", "", echo.Map{"username": "abc", "password": "short"})
	s.Equal(http.StatusBadRequest, code)
	code, _ = s.call(http.MethodPost, "/v1/auth/signup", "", echo.Map{"username": "abc", "password": strings.Repeat("a", 80)})
	s.Equal(http.StatusBadRequest, code, "over the bcrypt limit")
	code, _ = s.call(http.MethodPost, "/v1/auth/signup", "", echo.Map{"username": "abc", "password": strings.Repeat("é", 37)})
	s.Equal(http.StatusBadRequest, code, "37 runes but 74 bytes")
	code, _ = s.call(http.MethodPost, "/v1/auth/signup", "", echo.Map{"username": "abcd", "password": strings.Repeat("é", 36)})
	s.Equal(http.StatusCreated, code, "exactly 72 bytes")

	code, _ = s.call(http.MethodPost, "/v1/auth/login", "", echo.Map{"username": "asha", "password": "wrong!"})
	s.Equal(http.StatusUnauthorized, code)

	tok := s.login("asha", "secret1")
	code, body = s.call(http.MethodGet, "/v1/me", tok, nil)
	s.Require().Equal(http.StatusOK, code)
	s.Equal("asha", body["username"])

	code, _ = s.call(http.MethodGet, "/v1/me", "", nil)
	s.Equal(http.StatusUnauthorized, code)
}

func (s *APISuite) TestReservationLifecycle() {
	student := s.login("ram", "ram@123")
	staff := s.login("suresh", "suresh@123")
	camera := s.items["Canon EOS 80D"]

	code, body := s.call(http.MethodPost, "/v1/reservations", student, echo.Map{
		"item_id": camera, "start_date": "2025-01-01", "end_date": "2025-01-05", "quantity": 3,
	})
	s.Require().Equal(http.StatusCreated, code, body)
	s.Equal("PENDING", body["status"])
	s.Equal("UNDECIDED", body["decision"].(map[string]any)["state"])
	rid := id(body)

	code, _ = s.call(http.MethodPost, fmt.Sprintf("/v1/reservations/%d/approve", rid), student, nil)
	s.Equal(http.StatusForbidden, code, "students cannot decide")

	code, _ = s.call(http.MethodPost, fmt.Sprintf("/v1/reservations/%d/issue", rid), staff, nil)
	s.Equal(http.StatusConflict, code, "issue before approval")

	code, body = s.call(http.MethodPost, fmt.Sprintf("/v1/reservations/%d/approve", rid), staff, echo.Map{"note": "for the photo club"})
	s.Require().Equal(http.StatusOK, code, body)
	decision := body["decision"].(map[string]any)
	s.Equal("DECIDED", decision["state"])
	s.Equal("for the photo club", decision["note"])

	code, _ = s.call(http.MethodPost, fmt.Sprintf("/v1/reservations/%d/issue", rid), staff, nil)
	s.Require().Equal(http.StatusOK, code)
	code, body = s.call(http.MethodGet, fmt.Sprintf("/v1/items/%d", camera), student, nil)
	s.Require().Equal(http.StatusOK, code)
	s.Equal(float64(2), body["available_quantity"])

	code, body = s.call(http.MethodPost, fmt.Sprintf("/v1/reservations/%d/return", rid), staff, nil)
	s.Require().Equal(http.StatusOK, code)
	s.Equal("RETURNED", body["status"])
	_, body = s.call(http.MethodGet, fmt.Sprintf("/v1/items/%d", camera), student, nil)
	s.Equal(float64(5), body["available_quantity"])

	code, _ = s.call(http.MethodPost, fmt.Sprintf("/v1/reservations/%d/reject", rid), staff, nil)
	s.Equal(http.StatusConflict, code, "returned is terminal")
}

func (s *APISuite) TestCreateRefusals() {
	student := s.login("ram", "ram@123")
	staff := s.login("suresh", "suresh@123")
	guitar := s.items["Acoustic Guitar"]

	code, body := s.call(http.MethodPost, "/v1/reservations", student, echo.Map{
		"item_id": guitar, "start_date": "2025-02-01", "end_date": "2025-02-05", "quantity": 3,
	})
	s.Require().Equal(http.StatusCreated, code)
	code, _ = s.call(http.MethodPost, fmt.Sprintf("/v1/reservations/%d/approve", id(body)), staff, nil)
	s.Require().Equal(http.StatusOK, code)

	cases := []struct {
		body echo.Map
		want int
	}{
		{echo.Map{"item_id": guitar, "start_date": "2025-02-05", "end_date": "2025-02-06", "quantity": 1}, http.StatusConflict},
		{echo.Map{"item_id": guitar, "start_date": "2025-02-06", "end_date": "2025-02-07", "quantity": 0}, http.StatusBadRequest},
		{echo.Map{"item_id": guitar, "start_date": "2025-02-07", "end_date": "2025-02-06", "quantity": 1}, http.StatusBadRequest},
		{echo.Map{"item_id": guitar, "start_date": "02/06/2025", "end_date": "2025-02-06", "quantity": 1}, http.StatusBadRequest},
		{echo.Map{"item_id": 9999, "start_date": "2025-02-06", "end_date": "2025-02-06", "quantity": 1}, http.StatusNotFound},
		{echo.Map{"item_id": guitar, "start_date": "2025-02-06", "end_date": "2025-02-06", "quantity": 3}, http.StatusCreated},
	}
	for _, tc := range cases {
		code, body := s.call(http.MethodPost, "/v1/reservations", student, tc.body)
		s.Equal(tc.want, code, "%v -> %v", tc.body, body)
	}
}

func (s *APISuite) TestListScoping() {
	ram := s.login("ram", "ram@123")
	staff := s.login("suresh", "suresh@123")
	kit := s.items["Basketball Kit"]

	code, body := s.call(http.MethodPost, "/v1/reservations", ram, echo.Map{
		"item_id": kit, "start_date": "2025-03-01", "end_date": "2025-03-02", "quantity": 2,
	})
	s.Require().Equal(http.StatusCreated, code)
	ramRes := id(body)
	code, _ = s.call(http.MethodPost, "/v1/reservations", staff, echo.Map{
		"item_id": kit, "start_date": "2025-03-01", "end_date": "2025-03-02", "quantity": 1,
	})
	s.Require().Equal(http.StatusCreated, code)

	count := func(tok, query string) int {
		code, body := s.call(http.MethodGet, "/v1/reservations"+query, tok, nil)
		s.Require().Equal(http.StatusOK, code)
		return len(body["reservations"].([]any))
	}
	s.Equal(1, count(ram, ""))
	s.Equal(2, count(staff, ""))
	s.Equal(1, count(staff, "?mine=true"))
	s.Equal(2, count(staff, "?status=pending"))
	s.Equal(0, count(staff, "?status=APPROVED"))
	s.Equal(2, count(staff, fmt.Sprintf("?item_id=%d", kit)))

	code, _ = s.call(http.MethodGet, "/v1/reservations?status=LOST", staff, nil)
	s.Equal(http.StatusBadRequest, code)

	code, _ = s.call(http.MethodGet, fmt.Sprintf("/v1/reservations/%d", ramRes), staff, nil)
	s.Equal(http.StatusOK, code)

	code, body = s.call(http.MethodPost, "/v1/auth/signup", "", echo.Map{"username": "other", "password": "secret1"})
	s.Require().Equal(http.StatusCreated, code)
	other := body["access"].(map[string]any)["token"].(string)
	code, _ = s.call(http.MethodGet, fmt.Sprintf("/v1/reservations/%d", ramRes), other, nil)
	s.Equal(http.StatusNotFound, code)
}

func (s *APISuite) TestCatalogManagement() {
	staff := s.login("suresh", "suresh@123")
	admin := s.login("prakash", "prakash@123")

	code, _ := s.call(http.MethodPost, "/v1/items", staff, echo.Map{"name": "Tripod", "total_quantity": 2})
	s.Equal(http.StatusForbidden, code)

	code, body := s.call(http.MethodPost, "/v1/items", admin, echo.Map{"name": "Tripod", "category": "Camera", "total_quantity": 2})
	s.Require().Equal(http.StatusCreated, code)
	s.Equal(float64(2), body["available_quantity"])
	tripod := id(body)

	code, body = s.call(http.MethodPut, fmt.Sprintf("/v1/items/%d", tripod), admin, echo.Map{"available_quantity": 7})
	s.Require().Equal(http.StatusOK, code)
	s.Equal(float64(2), body["available_quantity"], "clamped to total")
	s.Equal("Tripod", body["name"])

	code, body = s.call(http.MethodGet, "/v1/items?category=camera", staff, nil)
	s.Require().Equal(http.StatusOK, code)
	s.Len(body["items"].([]any), 2)

	code, _ = s.call(http.MethodGet, "/v1/items?available_only=maybe", staff, nil)
	s.Equal(http.StatusBadRequest, code)

	code, _ = s.call(http.MethodDelete, fmt.Sprintf("/v1/items/%d", tripod), admin, nil)
	s.Equal(http.StatusNoContent, code)
	code, _ = s.call(http.MethodGet, fmt.Sprintf("/v1/items/%d", tripod), admin, nil)
	s.Equal(http.StatusNotFound, code)
}

func TestUnitMovingTransitionsInvalidateCache(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	svc := service.NewReservationService(store, service.NewLedger(store), lock.NewLocalLocker(), nil, nil)
	it := &model.Item{Name: "Acoustic Guitar", Category: "Music", TotalQuantity: 3, AvailableQuantity: 3}
	require.NoError(t, store.Items().Create(ctx, it))

	var flushed []string
	invalidate := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil && c.Response().Status < http.StatusBadRequest {
				flushed = append(flushed, c.Path())
			}
			return err
		}
	}
	noLimit := func(next echo.HandlerFunc) echo.HandlerFunc { return next }

	e := echo.New()
	RegisterReservations(e, handler.NewReservationHandler(svc, zap.NewNop()), "secret", noLimit, invalidate)
	tok, err := utils.NewAccessToken("secret", 7, string(model.RoleStaff), 5)
	require.NoError(t, err)

	reserve := func() uint64 {
		day := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
		r, err := svc.Create(ctx, service.CreateInput{RequesterID: 7, ItemID: it.ID, StartDate: day, EndDate: day, Quantity: 1})
		require.NoError(t, err)
		return r.ID
	}
	post := func(id uint64, op string) int {
		req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/v1/reservations/%d/%s", id, op), nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	a, b := reserve(), reserve()
	require.Equal(t, http.StatusOK, post(a, "approve"))
	require.Equal(t, http.StatusOK, post(b, "approve"))
	assert.Empty(t, flushed, "approval moves no units")

	require.Equal(t, http.StatusOK, post(a, "issue"))
	require.Equal(t, http.StatusOK, post(a, "return"))
	require.Equal(t, http.StatusOK, post(b, "reject"))
	require.Equal(t, http.StatusConflict, post(a, "issue"))

	assert.Equal(t, []string{
		"/v1/reservations/:id/issue",
		"/v1/reservations/:id/return",
		"/v1/reservations/:id/reject",
	}, flushed)
}

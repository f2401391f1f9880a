package api

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/chorebot/internal/approval"
	"github.com/Kerhoff/chorebot/internal/catalog"
	"github.com/Kerhoff/chorebot/internal/clock"
	"github.com/Kerhoff/chorebot/internal/models"
	"github.com/Kerhoff/chorebot/internal/repository/sqlstore"
	"github.com/Kerhoff/chorebot/internal/service"
	"github.com/Kerhoff/chorebot/internal/storage"
	"github.com/Kerhoff/chorebot/internal/testutil"
)

const testToken = "123456:TEST-TOKEN"

type stubGateway struct {
	mock.Mock
}

func (m *stubGateway) SendText(ctx context.Context, chatID int64, text string) error {
	return m.Called(ctx, chatID, text).Error(0)
}

func (m *stubGateway) SendMedia(ctx context.Context, chatID int64, proof approval.Proof, caption string, decision *models.ApprovalRef) (string, error) {
	args := m.Called(ctx, chatID, proof, caption, decision)
	return args.String(0), args.Error(1)
}

func (m *stubGateway) UpdateMedia(ctx context.Context, chatID int64, messageRef, caption string) error {
	return m.Called(ctx, chatID, messageRef, caption).Error(0)
}

type testEnv struct {
	server  *Server
	family  *testutil.Family
	other   *testutil.Family
	gateway *stubGateway
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.OpenDB(t)
	logger := testutil.Logger()

	baseline, err := catalog.LoadBaseline("")
	require.NoError(t, err)
	proofs, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	users := sqlstore.NewUserRepository(db)
	completions := sqlstore.NewCompletionRepository(db)
	extras := sqlstore.NewExtraTaskRepository(db)
	cat := catalog.New(sqlstore.NewChecklistRepository(db), baseline, logger)
	clk := clock.Fake(time.Date(2025, 1, 8, 18, 0, 0, 0, time.UTC))

	gw := &stubGateway{}
	gw.On("SendText", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	gw.On("SendMedia", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("77", nil).Maybe()
	gw.On("UpdateMedia", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	coord := approval.NewCoordinator(approval.Stores{
		Users:       users,
		Completions: completions,
		Extras:      extras,
		Tracking:    sqlstore.NewApprovalMessageRepository(db),
	}, cat, gw, clk, logger)
	svc := service.New(logger, clk, gw, sqlstore.NewFamilyRepository(db), users, completions, extras, cat, coord)

	env := &testEnv{
		server:  NewServer(svc, proofs, testToken, logger),
		family:  testutil.SeedFamily(t, db, 300),
		other:   testutil.SeedFamily(t, db, 400),
		gateway: gw,
	}
	for _, kid := range append(env.family.Kids, env.other.Kids...) {
		require.NoError(t, cat.EnsureInitialized(context.Background(), kid.ID))
	}
	return env
}

// signInitData builds launch parameters the way Telegram signs them.
func signInitData(token string, userID int64, authDate time.Time) string {
	values := url.Values{}
	values.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	values.Set("query_id", "AAHdF6IQAAAAAN0XohDhrOrc")
	values.Set("user", fmt.Sprintf(`{"id":%d,"first_name":"Test"}`, userID))

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, key+"="+values.Get(key))
	}

	secret := hmacSHA256([]byte("WebAppData"), []byte(token))
	values.Set("hash", hex.EncodeToString(hmacSHA256(secret, []byte(strings.Join(lines, "\n")))))
	return values.Encode()
}

func (e *testEnv) do(t *testing.T, user *models.User, method, target string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if user != nil {
		req.Header.Set("Authorization", authScheme+signInitData(testToken, user.ExternalChatID, time.Now()))
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) upload(t *testing.T, user *models.User, target string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "proof.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return e.do(t, user, http.MethodPost, target, &body, mw.FormDataContentType())
}

func TestValidateInitData(t *testing.T) {
	now := time.Now()
	initData := signInitData(testToken, 42, now)

	user, err := ValidateInitData(initData, testToken, time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, int64(42), user.ID)
	assert.Equal(t, "Test", user.FirstName)

	_, err = ValidateInitData(initData, "other-token", time.Hour, now)
	assert.ErrorIs(t, err, errBadHash)

	_, err = ValidateInitData(strings.Replace(initData, "Test", "Evil", 1), testToken, time.Hour, now)
	assert.ErrorIs(t, err, errBadHash)

	_, err = ValidateInitData(initData, testToken, time.Hour, now.Add(2*time.Hour))
	assert.ErrorIs(t, err, errExpired)

	_, err = ValidateInitData("auth_date=1&user=%7B%7D", testToken, 0, now)
	assert.ErrorIs(t, err, errMissingHash)
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, nil, http.MethodGet, "/api/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	stranger := &models.User{ExternalChatID: 999999}
	rec = env.do(t, stranger, http.MethodGet, "/api/me", nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, env.family.Kids[0], http.MethodGet, "/api/me", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var me models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "Ann", me.Name)

	rec = env.do(t, nil, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSubmitAndDecide(t *testing.T) {
	env := newTestEnv(t)
	ann, mom, dad := env.family.Kids[0], env.family.Parents[0], env.family.Parents[1]

	rec := env.upload(t, ann, "/api/checklist/teeth/complete")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var sub submissionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))
	assert.Equal(t, models.ApprovalTask, sub.Ref.Kind)
	assert.Equal(t, "pending", sub.Status)
	assert.Equal(t, 2, sub.Delivered)

	rec = env.do(t, mom, http.MethodGet, "/api/approvals", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var pending []*models.PendingApproval
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, sub.Ref, pending[0].Ref)
	assert.True(t, strings.HasPrefix(pending[0].ProofRef, "upload:"))

	rec = env.do(t, mom, http.MethodGet, "/api/media/"+pending[0].ProofRef, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpeg bytes", rec.Body.String())

	target := fmt.Sprintf("/api/approvals/task/%d/approve", sub.Ref.ID)
	rec = env.do(t, mom, http.MethodPost, target, nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, dad, http.MethodPost, fmt.Sprintf("/api/approvals/task/%d/reject", sub.Ref.ID), nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, ann, http.MethodGet, "/api/checklist", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view service.DayView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	for _, item := range view.Items {
		if item.Key == "teeth" {
			assert.Equal(t, service.StatusDone, item.Status)
		}
	}
}

func TestSubmitRejectsUnknownTask(t *testing.T) {
	env := newTestEnv(t)

	rec := env.upload(t, env.family.Kids[0], "/api/checklist/juggling/complete")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, env.family.Kids[0], http.MethodPost, "/api/checklist/teeth/complete", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoleAndFamilyChecks(t *testing.T) {
	env := newTestEnv(t)
	ann, mom := env.family.Kids[0], env.family.Parents[0]
	stranger := env.other.Parents[0]

	rec := env.do(t, ann, http.MethodGet, "/api/approvals", nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.upload(t, mom, "/api/checklist/teeth/complete")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, stranger, http.MethodGet, fmt.Sprintf("/api/today/%d", ann.ID), nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, mom, http.MethodGet, "/api/today/999999", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.upload(t, ann, "/api/checklist/bed/complete")
	require.Equal(t, http.StatusOK, rec.Code)
	var sub submissionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))

	rec = env.do(t, stranger, http.MethodPost, fmt.Sprintf("/api/approvals/task/%d/approve", sub.Ref.ID), nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestExtraLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ann, mom := env.family.Kids[0], env.family.Parents[0]

	body := bytes.NewBufferString(fmt.Sprintf(`{"child_id":%d,"title":"Wash the car","points":3}`, ann.ID))
	rec := env.do(t, mom, http.MethodPost, "/api/extras", body, "application/json")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var extra models.ExtraTask
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &extra))
	assert.Equal(t, "2025-01-08", extra.Date)

	body = bytes.NewBufferString(fmt.Sprintf(`{"child_id":%d,"title":"Rake leaves","points":2,"date":"08/01/2025"}`, ann.ID))
	rec = env.do(t, mom, http.MethodPost, "/api/extras", body, "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = env.upload(t, ann, fmt.Sprintf("/api/extras/%d/complete", extra.ID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, ann, http.MethodPost, fmt.Sprintf("/api/extras/%d/uncomplete", extra.ID), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, mom, http.MethodPost, fmt.Sprintf("/api/approvals/extra/%d/approve", extra.ID), nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTaskManagementAndReports(t *testing.T) {
	env := newTestEnv(t)
	ann, mom := env.family.Kids[0], env.family.Parents[0]
	base := fmt.Sprintf("/api/tasks/%d", ann.ID)

	rec := env.do(t, mom, http.MethodPost, base+"/add", bytes.NewBufferString(`{"label":"Feed the cat","group":"evening"}`), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var added map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &added))
	assert.NotEmpty(t, added["key"])

	rec = env.do(t, mom, http.MethodPost, base+"/toggle", bytes.NewBufferString(`{"key":"bed","enabled":false}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, mom, http.MethodGet, base, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var items []*models.ChecklistItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	assert.Len(t, items, 10)

	rec = env.do(t, mom, http.MethodGet, fmt.Sprintf("/api/report/%d", ann.ID), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"start":"2025-01-06"`)

	rec = env.do(t, mom, http.MethodGet, fmt.Sprintf("/api/history/%d?weeks=2", ann.ID), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history []json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Len(t, history, 2)

	rec = env.do(t, mom, http.MethodGet, fmt.Sprintf("/api/report/%d/export", ann.ID), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec = env.do(t, mom, http.MethodGet, "/api/invite", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), env.family.Family.InviteCode)
}

package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/chorebot/internal/models"
)

// authScheme prefixes the Mini App init data in the Authorization header.
const authScheme = "tma "

var (
	errMissingHash = errors.New("init data has no hash")
	errBadHash     = errors.New("init data hash mismatch")
	errExpired     = errors.New("init data expired")
	errNoUser      = errors.New("init data has no user")
)

// WebAppUser is the Telegram account that opened the Mini App.
type WebAppUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// ValidateInitData checks the signature Telegram puts on Mini App launch
// parameters and returns the user they describe. A zero maxAge disables the
// auth_date check.
func ValidateInitData(initData, botToken string, maxAge time.Duration, now time.Time) (*WebAppUser, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, err
	}

	received := values.Get("hash")
	if received == "" {
		return nil, errMissingHash
	}
	values.Del("hash")

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, key+"="+values.Get(key))
	}

	secret := hmacSHA256([]byte("WebAppData"), []byte(botToken))
	expected := hex.EncodeToString(hmacSHA256(secret, []byte(strings.Join(lines, "\n"))))
	if !hmac.Equal([]byte(expected), []byte(received)) {
		return nil, errBadHash
	}

	if maxAge > 0 {
		authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
		if err != nil || now.Sub(time.Unix(authDate, 0)) > maxAge {
			return nil, errExpired
		}
	}

	rawUser := values.Get("user")
	if rawUser == "" {
		return nil, errNoUser
	}
	var user WebAppUser
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, errNoUser
	}
	return &user, nil
}

func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

type contextKey struct{}

// userFromContext returns the registered user attached by authenticate.
func userFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(contextKey{}).(*models.User)
	return user
}

// authenticate resolves the caller from Mini App init data. Unsigned calls
// get 401; signed calls from unknown accounts get 403.
func (s *Server) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, authScheme) {
			s.respondError(w, http.StatusUnauthorized, "missing authorization")
			return
		}

		tgUser, err := ValidateInitData(strings.TrimPrefix(header, authScheme), s.botToken, s.initDataMaxAge, time.Now())
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"path":  r.URL.Path,
				"error": err,
			}).Warn("Rejected init data")
			s.respondError(w, http.StatusUnauthorized, "invalid init data")
			return
		}

		user, err := s.svc.UserByChatID(r.Context(), tgUser.ID)
		if err != nil {
			s.logger.WithError(err).Error("failed to load user")
			s.respondError(w, http.StatusInternalServerError, "failed to load user")
			return
		}
		if user == nil {
			s.respondError(w, http.StatusForbidden, "user not registered")
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, user)))
	}
}

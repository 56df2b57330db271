package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/castwatch/backend/internal/auth"
	"github.com/castwatch/backend/internal/config"
	"github.com/castwatch/backend/internal/logging"
	"github.com/castwatch/backend/internal/models"
	"github.com/castwatch/backend/internal/repositories"
)

const maxRegisterBody = 1 << 20

// UserHandler implements account registration.
type UserHandler struct {
	Users    UserStore
	Hasher   PasswordHasher
	NewKey   auth.KeyFunc
	Messages config.ErrorMessages
	Validate *validator.Validate
	NowFunc  func() time.Time
}

type registerRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required,maxbytes=72"`
}

// Register handles POST /api/registerUser. A taken login is refused with the
// configured message and leaves the existing account untouched.
func (h UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Hasher == nil {
		logger.Error("registration dependencies unavailable", "hasUsers", h.Users != nil, "hasHasher", h.Hasher != nil)
		respondError(ctx, w, http.StatusInternalServerError, "registration unavailable")
		return
	}

	var req registerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRegisterBody)).Decode(&req); err != nil {
		logger.Warn("invalid register payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator().Struct(req); err != nil {
		logger.Warn("register payload failed validation", "error", err)
		respondError(ctx, w, http.StatusBadRequest, validationMessage(err))
		return
	}

	if _, err := h.Users.FindByLogin(ctx, req.Login); err == nil {
		respondDomainError(ctx, w, h.Messages.UserExists)
		return
	} else if !errors.Is(err, repositories.ErrNotFound) {
		logger.Error("register user lookup failed", "error", err, "login", req.Login)
		respondError(ctx, w, http.StatusInternalServerError, "unable to verify existing accounts")
		return
	}

	hashed, err := h.Hasher.Hash(req.Password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		logger.Warn("register password too long for hashing")
		respondError(ctx, w, http.StatusBadRequest, fmt.Sprintf("password must be at most %d bytes", auth.MaxPasswordBytes))
		return
	}
	if err != nil {
		logger.Error("register failed to hash password", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to secure password")
		return
	}

	newKey := h.NewKey
	if newKey == nil {
		newKey = auth.NewAPIKey
	}
	user := models.NewUser(req.Login, hashed, newKey())
	user.CreatedAt = h.now()

	saved, err := h.Users.Save(ctx, user)
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondDomainError(ctx, w, h.Messages.UserExists)
			return
		}
		logger.Error("register failed to create user", "error", err, "login", req.Login)
		respondError(ctx, w, http.StatusInternalServerError, "failed to create account")
		return
	}

	logger.Info("user registered", "user_id", saved.ID)
	respondValue(ctx, w, "api_key", saved.APIKey)
}

func (h UserHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

func (h UserHandler) validator() *validator.Validate {
	if h.Validate != nil {
		return h.Validate
	}
	return NewValidator()
}

// NewValidator returns a validator that reports fields by their json names.
// It adds maxbytes, a length limit on a string's byte length rather than its
// rune count.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("maxbytes", validateMaxBytes)
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validateMaxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	field := fl.Field()
	return field.Kind() == reflect.String && len(field.String()) <= limit
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "invalid request body"
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "maxbytes":
		return fmt.Sprintf("%s must be at most %s bytes", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

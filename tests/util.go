package testutil

import (
	"math"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/trezcool/alama/core"
)

var secretKey = []byte("secret")

// NewValidator returns a ready-to-use validator and translator pair.
func NewValidator() (*validator.Validate, ut.Translator) {
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	return validate, translator
}

type fakeUser struct {
	ID        string
	Username  string
	Email     string
	Password  string // plain; this is a test double
	CreatedAt time.Time
}

type storedPrediction struct {
	UserID     string
	Prediction string
	Confidence float64
	InputData  map[string]interface{}
	Timestamp  time.Time
}

// Server is an in-memory stand-in for the prediction API, close enough
// to the real one for the client to be exercised end to end: bearer-JWT
// auth, `{"error": string}` envelopes and matching status codes.
type Server struct {
	App *echo.Echo

	mu          sync.Mutex
	users       map[string]*fakeUser
	predictions []storedPrediction
	requests    int
}

func NewServer() *Server {
	s := &Server{
		App:   echo.New(),
		users: make(map[string]*fakeUser),
	}
	s.setup()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.App.ServeHTTP(w, r)
}

// RequestCount reports how many requests reached the server; used to
// assert that client-side validation short-circuits before dispatch.
func (s *Server) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// AddUser seeds an account directly, bypassing the register endpoint.
func (s *Server) AddUser(t *testing.T, username, email, password string) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New().String()
	s.users[id] = &fakeUser{
		ID:        id,
		Username:  username,
		Email:     email,
		Password:  password,
		CreatedAt: time.Now().UTC(),
	}
	return id
}

// AddPrediction seeds a history entry for the user.
func (s *Server) AddPrediction(t *testing.T, userID, label string, confidence float64, input map[string]interface{}, ts time.Time) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predictions = append(s.predictions, storedPrediction{
		UserID:     userID,
		Prediction: label,
		Confidence: confidence,
		InputData:  input,
		Timestamp:  ts.UTC(),
	})
}

// TokenFor mints a bearer token for the user, the way the API does.
func (s *Server) TokenFor(t *testing.T, userID string) string {
	t.Helper()
	claims := &jwt.StandardClaims{
		Subject:   userID,
		IssuedAt:  time.Now().Unix(),
		ExpiresAt: time.Now().Add(24 * time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secretKey)
	if err != nil {
		t.Fatalf("TokenFor() failed: %v", err)
	}
	return token
}

func (s *Server) setup() {
	s.App.HTTPErrorHandler = errorHandler
	s.App.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			s.mu.Lock()
			s.requests++
			s.mu.Unlock()
			return next(ctx)
		}
	})

	api := s.App.Group("/api")
	api.POST("/register", s.register)
	api.POST("/login", s.login)

	authed := api.Group("", middleware.JWTWithConfig(middleware.JWTConfig{
		SigningKey: secretKey,
		Claims:     &jwt.StandardClaims{},
	}))
	authed.GET("/user/profile", s.getProfile)
	authed.PUT("/user/profile", s.updateProfile)
	authed.PUT("/user/password", s.changePassword)
	authed.PUT("/user/email", s.changeEmail)
	authed.DELETE("/user/account", s.deleteAccount)
	authed.POST("/predict", s.predict)
	authed.GET("/user/predictions", s.userPredictions)
	authed.GET("/stats", s.stats)
}

// errorHandler writes every error in the API's `{error}` envelope.
func errorHandler(err error, ctx echo.Context) {
	code := http.StatusInternalServerError
	msg := http.StatusText(code)
	if herr, ok := err.(*echo.HTTPError); ok {
		code = herr.Code
		if herr == middleware.ErrJWTMissing {
			code = http.StatusUnauthorized
		}
		if m, ok := herr.Message.(string); ok {
			msg = m
		}
	}
	if !ctx.Response().Committed {
		_ = ctx.JSON(code, echo.Map{"error": msg})
	}
}

func errJSON(ctx echo.Context, code int, msg string) error {
	return ctx.JSON(code, echo.Map{"error": msg})
}

func (s *Server) contextUser(ctx echo.Context) *fakeUser {
	token, ok := ctx.Get("user").(*jwt.Token)
	if !ok {
		return nil
	}
	claims, ok := token.Claims.(*jwt.StandardClaims)
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[claims.Subject]
}

func (s *Server) register(ctx echo.Context) error {
	var data struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := ctx.Bind(&data); err != nil {
		return errJSON(ctx, http.StatusBadRequest, "invalid payload")
	}
	if data.Username == "" || data.Email == "" || data.Password == "" {
		return errJSON(ctx, http.StatusBadRequest, "Missing required fields")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, usr := range s.users {
		if usr.Username == data.Username || usr.Email == data.Email {
			return errJSON(ctx, http.StatusBadRequest, "User already exists")
		}
	}
	id := uuid.New().String()
	s.users[id] = &fakeUser{
		ID:        id,
		Username:  data.Username,
		Email:     data.Email,
		Password:  data.Password,
		CreatedAt: time.Now().UTC(),
	}
	return ctx.JSON(http.StatusCreated, echo.Map{
		"message": "User registered successfully",
		"user_id": id,
	})
}

func (s *Server) login(ctx echo.Context) error {
	var data struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := ctx.Bind(&data); err != nil {
		return errJSON(ctx, http.StatusBadRequest, "invalid payload")
	}
	if data.Username == "" || data.Password == "" {
		return errJSON(ctx, http.StatusBadRequest, "Missing username or password")
	}

	s.mu.Lock()
	var usr *fakeUser
	for _, u := range s.users {
		if u.Username == data.Username {
			usr = u
			break
		}
	}
	s.mu.Unlock()

	if usr == nil || usr.Password != data.Password {
		return errJSON(ctx, http.StatusUnauthorized, "Invalid credentials")
	}

	claims := &jwt.StandardClaims{
		Subject:   usr.ID,
		IssuedAt:  time.Now().Unix(),
		ExpiresAt: time.Now().Add(24 * time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secretKey)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"access_token": token,
		"user": echo.Map{
			"id":       usr.ID,
			"username": usr.Username,
			"email":    usr.Email,
		},
	})
}

func (s *Server) getProfile(ctx echo.Context) error {
	usr := s.contextUser(ctx)
	if usr == nil {
		return errJSON(ctx, http.StatusNotFound, "User not found")
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"user": echo.Map{
			"_id":        usr.ID,
			"username":   usr.Username,
			"email":      usr.Email,
			"created_at": isoTimestamp(usr.CreatedAt),
		},
	})
}

func (s *Server) updateProfile(ctx echo.Context) error {
	usr := s.contextUser(ctx)
	if usr == nil {
		return errJSON(ctx, http.StatusNotFound, "User not found")
	}
	var data struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if err := ctx.Bind(&data); err != nil {
		return errJSON(ctx, http.StatusBadRequest, "invalid payload")
	}
	if data.Username == "" || data.Email == "" {
		return errJSON(ctx, http.StatusBadRequest, "Username and email are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.users {
		if other.ID != usr.ID && (other.Username == data.Username || other.Email == data.Email) {
			return errJSON(ctx, http.StatusBadRequest, "Username or email already exists")
		}
	}
	usr.Username = data.Username
	usr.Email = data.Email
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Profile updated successfully"})
}

func (s *Server) changePassword(ctx echo.Context) error {
	usr := s.contextUser(ctx)
	if usr == nil {
		return errJSON(ctx, http.StatusNotFound, "User not found")
	}
	var data struct {
		Current string `json:"currentPassword"`
		New     string `json:"newPassword"`
	}
	if err := ctx.Bind(&data); err != nil {
		return errJSON(ctx, http.StatusBadRequest, "invalid payload")
	}
	if data.Current == "" || data.New == "" {
		return errJSON(ctx, http.StatusBadRequest, "Current password and new password are required")
	}
	if len(data.New) < 6 {
		return errJSON(ctx, http.StatusBadRequest, "New password must be at least 6 characters long")
	}
	if usr.Password != data.Current {
		return errJSON(ctx, http.StatusBadRequest, "Current password is incorrect")
	}

	s.mu.Lock()
	usr.Password = data.New
	s.mu.Unlock()
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Password changed successfully"})
}

func (s *Server) changeEmail(ctx echo.Context) error {
	usr := s.contextUser(ctx)
	if usr == nil {
		return errJSON(ctx, http.StatusNotFound, "User not found")
	}
	var data struct {
		NewEmail string `json:"newEmail"`
		Password string `json:"password"`
	}
	if err := ctx.Bind(&data); err != nil {
		return errJSON(ctx, http.StatusBadRequest, "invalid payload")
	}
	if data.NewEmail == "" || data.Password == "" {
		return errJSON(ctx, http.StatusBadRequest, "New email and password are required")
	}
	if usr.Password != data.Password {
		return errJSON(ctx, http.StatusBadRequest, "Password is incorrect")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.users {
		if other.ID != usr.ID && other.Email == data.NewEmail {
			return errJSON(ctx, http.StatusBadRequest, "Email already exists")
		}
	}
	usr.Email = data.NewEmail
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Email updated successfully"})
}

func (s *Server) deleteAccount(ctx echo.Context) error {
	usr := s.contextUser(ctx)
	if usr == nil {
		return errJSON(ctx, http.StatusNotFound, "User not found")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, usr.ID)
	kept := s.predictions[:0]
	for _, pred := range s.predictions {
		if pred.UserID != usr.ID {
			kept = append(kept, pred)
		}
	}
	s.predictions = kept
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Account deleted successfully"})
}

func (s *Server) predict(ctx echo.Context) error {
	usr := s.contextUser(ctx)
	if usr == nil {
		return errJSON(ctx, http.StatusNotFound, "User not found")
	}
	var data struct {
		Gender            string `json:"gender"`
		RaceEthnicity     string `json:"race_ethnicity"`
		ParentalEducation string `json:"parental_education"`
		Lunch             string `json:"lunch"`
		TestPreparation   string `json:"test_preparation"`
		MathScore         int    `json:"math_score"`
		ReadingScore      int    `json:"reading_score"`
		WritingScore      int    `json:"writing_score"`
	}
	if err := ctx.Bind(&data); err != nil {
		return errJSON(ctx, http.StatusBadRequest, "invalid payload")
	}

	// deterministic fake model: tercile by average score
	avg := float64(data.MathScore+data.ReadingScore+data.WritingScore) / 3
	label := "Low"
	switch {
	case avg >= 70:
		label = "High"
	case avg >= 40:
		label = "Medium"
	}
	confidence := 0.55 + avg/250
	if confidence > 0.99 {
		confidence = 0.99
	}

	input := map[string]interface{}{
		"gender":                      data.Gender,
		"race/ethnicity":              data.RaceEthnicity,
		"parental level of education": data.ParentalEducation,
		"lunch":                       data.Lunch,
		"test preparation course":     data.TestPreparation,
		"math score":                  data.MathScore,
		"reading score":               data.ReadingScore,
		"writing score":               data.WritingScore,
	}

	s.mu.Lock()
	s.predictions = append(s.predictions, storedPrediction{
		UserID:     usr.ID,
		Prediction: label,
		Confidence: confidence,
		InputData:  input,
		Timestamp:  time.Now().UTC(),
	})
	s.mu.Unlock()

	return ctx.JSON(http.StatusOK, echo.Map{
		"prediction": label,
		"confidence": confidence,
		"input_data": input,
	})
}

func (s *Server) userPredictions(ctx echo.Context) error {
	usr := s.contextUser(ctx)
	if usr == nil {
		return errJSON(ctx, http.StatusNotFound, "User not found")
	}

	s.mu.Lock()
	var mine []storedPrediction
	for _, pred := range s.predictions {
		if pred.UserID == usr.ID {
			mine = append(mine, pred)
		}
	}
	s.mu.Unlock()

	// newest first
	sort.SliceStable(mine, func(i, j int) bool { return mine[i].Timestamp.After(mine[j].Timestamp) })

	out := make([]echo.Map, 0, len(mine))
	for _, pred := range mine {
		out = append(out, echo.Map{
			"prediction": pred.Prediction,
			"confidence": pred.Confidence,
			"input_data": pred.InputData,
			"timestamp":  isoTimestamp(pred.Timestamp),
		})
	}
	return ctx.JSON(http.StatusOK, echo.Map{"predictions": out})
}

func (s *Server) stats(ctx echo.Context) error {
	usr := s.contextUser(ctx)
	if usr == nil {
		return errJSON(ctx, http.StatusNotFound, "User not found")
	}

	s.mu.Lock()
	var mine []storedPrediction
	for _, pred := range s.predictions {
		if pred.UserID == usr.ID {
			mine = append(mine, pred)
		}
	}
	s.mu.Unlock()

	if len(mine) == 0 {
		return ctx.JSON(http.StatusOK, echo.Map{
			"total_predictions":        0,
			"performance_distribution": echo.Map{},
			"average_confidence":       0,
		})
	}

	distribution := make(map[string]int)
	var total float64
	for _, pred := range mine {
		distribution[pred.Prediction]++
		total += pred.Confidence
	}
	avg := math.Round(total/float64(len(mine))*100) / 100

	return ctx.JSON(http.StatusOK, echo.Map{
		"total_predictions":        len(mine),
		"performance_distribution": distribution,
		"average_confidence":       avg,
	})
}

// isoTimestamp mimics the API's zone-less ISO datetime strings.
func isoTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.999999")
}

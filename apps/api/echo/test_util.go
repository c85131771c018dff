package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/tsacademy/academia/core"
	"github.com/tsacademy/academia/core/school"
	"github.com/tsacademy/academia/core/user"
	emailsvc "github.com/tsacademy/academia/services/email"
	logsvc "github.com/tsacademy/academia/services/logger"
	dummydb "github.com/tsacademy/academia/storage/database/dummy"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newTestConfig() *core.Config {
	return &core.Config{
		Env:                       "TEST",
		TestMode:                  true,
		Build:                     "test",
		AppName:                   "Academia",
		SecretKey:                 []byte("secret"),
		FrontendBaseURL:           "http://localhost:3000",
		DefaultFromEmail:          mail.Address{Name: "Academia", Address: "noreply@localhost"},
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Server: core.ServerConfig{
			Host:                      "localhost",
			Port:                      8000,
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
	}
}

type testEnv struct {
	conf   *core.Config
	server Server
	db     *dummydb.DB
	usrSvc *user.Service
	schSvc *school.Service
}

func setup(t *testing.T) *testEnv {
	conf := newTestConfig()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)

	logger := logsvc.NewStdLogger(log.New(io.Discard, "", 0))
	mailSvc := emailsvc.NewConsoleServiceMock(conf)

	usrSvc := user.NewService(conf, dummydb.NewUserRepository(db), mailSvc, logger)
	schSvc := school.NewService(
		dummydb.NewClassRepository(db),
		dummydb.NewAttendanceRepository(db),
		dummydb.NewFeeRepository(db),
		dummydb.NewAnnouncementRepository(db),
	)

	server := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		UserSvc:        usrSvc,
		SchoolSvc:      schSvc,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})

	return &testEnv{
		conf:   conf,
		server: server,
		db:     db,
		usrSvc: usrSvc,
		schSvc: schSvc,
	}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, conf *core.Config, idt user.Identity) string {
	claims := GetIdentityClaims(conf, idt)
	token, err := GenerateToken(conf, claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func createIdentity(t *testing.T, env *testEnv, name, email, pwd, role, classID string, isActive bool) user.Identity {
	t.Helper()
	now := time.Now().UTC()
	idt := user.Identity{
		Name:      name,
		Email:     email,
		Role:      role,
		ClassID:   classID,
		IsActive:  isActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pwd != "" {
		if err := idt.SetPassword(pwd); err != nil {
			t.Fatalf("createIdentity() failed: %v", err)
		}
	}
	idt, err := dummydb.NewUserRepository(env.db).CreateIdentity(context.Background(), idt)
	if err != nil {
		t.Fatalf("createIdentity() failed: %v", err)
	}
	return idt
}

func createClass(t *testing.T, env *testEnv, name, teacherID string) school.Class {
	t.Helper()
	cls, err := env.schSvc.CreateClass(context.Background(), school.NewClass{Name: name, TeacherID: teacherID})
	if err != nil {
		t.Fatalf("createClass() failed: %v", err)
	}
	return cls
}

func createFee(t *testing.T, env *testEnv, studentID string, amount float64, status string, date time.Time) school.FeeRecord {
	t.Helper()
	fee, err := env.schSvc.CreateFee(context.Background(), school.NewFee{
		StudentID: studentID,
		Amount:    amount,
		Status:    status,
		Date:      date,
	})
	if err != nil {
		t.Fatalf("createFee() failed: %v", err)
	}
	return fee
}

func createAnnouncement(t *testing.T, env *testEnv, title, text string, date time.Time) school.Announcement {
	t.Helper()
	ann, err := env.schSvc.PublishAnnouncement(context.Background(), school.NewAnnouncement{
		Title: title,
		Text:  text,
		Date:  date,
	})
	if err != nil {
		t.Fatalf("createAnnouncement() failed: %v", err)
	}
	return ann
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

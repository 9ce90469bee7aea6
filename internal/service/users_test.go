package service

import (
	"context"
	"errors"
	"testing"

	"github.com/arturkryukov/timemanager/internal/domain/model"
	"github.com/arturkryukov/timemanager/internal/keycloak"
)

// fakeIDP — мок IdentityProvider для unit-тестов UserService.
type fakeIDP struct {
	createdID   string
	createErr   error
	createCalls int

	deleteCalls int

	resetCalls     int
	resetID        string
	resetTemporary bool

	verifyResult bool
	verifyID     string // аргумент последнего VerifyPassword
}

func (f *fakeIDP) CreateUser(_ context.Context, _ keycloak.UserCreateParams) (string, error) {
	f.createCalls++
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.createdID, nil
}

func (f *fakeIDP) DeleteUser(_ context.Context, _ string) error {
	f.deleteCalls++
	return nil
}

func (f *fakeIDP) ResetPassword(_ context.Context, userID, _ string, temporary bool) error {
	f.resetCalls++
	f.resetID = userID
	f.resetTemporary = temporary
	return nil
}

func (f *fakeIDP) VerifyPassword(_ context.Context, keycloakID, _ string) bool {
	f.verifyID = keycloakID
	return f.verifyResult
}

// seedUser кладёт пользователя напрямую в фейковый репозиторий.
func seedUser(t *testing.T, repo *fakeUserRepo, u *model.User) *model.User {
	t.Helper()
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("подготовка пользователя: %v", err)
	}
	repo.createCalls = 0
	return u
}

// --- Тесты UserService ---

// TestUserCreate — провижининг в Keycloak и локальная вставка.
func TestUserCreate(t *testing.T) {
	repo := newFakeUserRepo()
	idp := &fakeIDP{createdID: "kc-new-001"}
	svc := NewUserService(repo, idp, testLogger())

	user, tempPassword, err := svc.Create(context.Background(), model.UserCreate{
		Email:     "jean.dupont@example.com",
		FirstName: "jean",
		LastName:  "dupont",
	})
	if err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if user.KeycloakID != "kc-new-001" {
		t.Errorf("KeycloakID = %q", user.KeycloakID)
	}
	if tempPassword == "" {
		t.Error("временный пароль не сгенерирован")
	}
	if idp.createCalls != 1 || repo.createCalls != 1 {
		t.Errorf("createCalls: idp=%d repo=%d, хотели по 1", idp.createCalls, repo.createCalls)
	}
}

// TestUserCreate_LocalDuplicate — дубликат email отсекается до похода
// в Keycloak.
func TestUserCreate_LocalDuplicate(t *testing.T) {
	repo := newFakeUserRepo()
	seedUser(t, repo, &model.User{
		Email:      "jean.dupont@example.com",
		KeycloakID: "kc-existing",
	})
	idp := &fakeIDP{createdID: "kc-new-001"}
	svc := NewUserService(repo, idp, testLogger())

	_, _, err := svc.Create(context.Background(), model.UserCreate{
		Email:     "jean.dupont@example.com",
		FirstName: "jean",
		LastName:  "dupont",
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("ожидали ErrConflict, получили: %v", err)
	}
	if idp.createCalls != 0 {
		t.Errorf("обращений к Keycloak = %d, дубликат должен отсекаться локально", idp.createCalls)
	}
}

// TestUserCreate_RollbackOnLocalFailure — при ошибке локальной вставки
// созданная в Keycloak учётка удаляется.
func TestUserCreate_RollbackOnLocalFailure(t *testing.T) {
	repo := newFakeUserRepo()
	seedUser(t, repo, &model.User{
		Email:      "other@example.com",
		KeycloakID: "kc-dup",
	})
	// Keycloak выдаёт ID, уже занятый в локальной БД
	idp := &fakeIDP{createdID: "kc-dup"}
	svc := NewUserService(repo, idp, testLogger())

	_, _, err := svc.Create(context.Background(), model.UserCreate{
		Email:     "jean.dupont@example.com",
		FirstName: "jean",
		LastName:  "dupont",
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("ожидали ErrConflict, получили: %v", err)
	}
	if idp.deleteCalls != 1 {
		t.Errorf("откатов в Keycloak = %d, хотели 1", idp.deleteCalls)
	}
}

// TestResetPassword_SelfVerifiesByKeycloakID — самостоятельная смена
// пароля проверяет текущий пароль по Keycloak ID учётки, а не по
// локальному email.
func TestResetPassword_SelfVerifiesByKeycloakID(t *testing.T) {
	repo := newFakeUserRepo()
	user := seedUser(t, repo, &model.User{
		Email:      "jean.dupont@example.com",
		KeycloakID: "kc-user-010",
	})
	idp := &fakeIDP{verifyResult: true}
	svc := NewUserService(repo, idp, testLogger())

	if err := svc.ResetPassword(context.Background(), user.ID, "old-secret", "new-secret"); err != nil {
		t.Fatalf("ResetPassword() ошибка: %v", err)
	}
	if idp.verifyID != "kc-user-010" {
		t.Errorf("VerifyPassword вызван с %q, хотели Keycloak ID %q", idp.verifyID, "kc-user-010")
	}
	if idp.resetTemporary {
		t.Error("самостоятельная смена не должна делать пароль временным")
	}
}

// TestResetPassword_WrongCurrent — неверный текущий пароль.
func TestResetPassword_WrongCurrent(t *testing.T) {
	repo := newFakeUserRepo()
	user := seedUser(t, repo, &model.User{
		Email:      "jean.dupont@example.com",
		KeycloakID: "kc-user-010",
	})
	idp := &fakeIDP{verifyResult: false}
	svc := NewUserService(repo, idp, testLogger())

	err := svc.ResetPassword(context.Background(), user.ID, "wrong", "new-secret")
	if !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("ожидали ErrWrongPassword, получили: %v", err)
	}
	if idp.resetCalls != 0 {
		t.Errorf("смен пароля = %d, хотели 0", idp.resetCalls)
	}
}

// TestResetPassword_AdminTemporary — административный сброс ставит
// временный пароль и не проверяет текущий.
func TestResetPassword_AdminTemporary(t *testing.T) {
	repo := newFakeUserRepo()
	user := seedUser(t, repo, &model.User{
		Email:      "jean.dupont@example.com",
		KeycloakID: "kc-user-010",
	})
	idp := &fakeIDP{}
	svc := NewUserService(repo, idp, testLogger())

	if err := svc.ResetPassword(context.Background(), user.ID, "", "new-secret"); err != nil {
		t.Fatalf("ResetPassword() ошибка: %v", err)
	}
	if idp.verifyID != "" {
		t.Error("административный сброс не должен проверять текущий пароль")
	}
	if !idp.resetTemporary || idp.resetID != "kc-user-010" {
		t.Errorf("resetID = %q, temporary = %v", idp.resetID, idp.resetTemporary)
	}
}

package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/tsacademy/academia/core"
)

var (
	// errors
	ErrNotFound    = errors.New("identity not found")
	ErrEmailExists = errors.New("an account with this email already exists")

	welcomeSubject = "Welcome aboard"
	resetSubject   = "Password reset"
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excluded ...Identity) error
		CreateIdentity(ctx context.Context, idt Identity) (Identity, error)
		GetIdentityByID(ctx context.Context, id string) (Identity, error)
		GetIdentityByEmail(ctx context.Context, email string) (Identity, error)
		// FilterIdentities applies AND on available QueryFilter fields;
		// QueryFilter.Search matches Name or Email case-insensitively.
		FilterIdentities(ctx context.Context, filter QueryFilter, opts core.QueryOptions) ([]Identity, error)
		CountIdentities(ctx context.Context, filter QueryFilter) (int, error)
		UpdateIdentity(ctx context.Context, idt Identity, isActive *bool) (Identity, error)
		// DeleteIdentitiesByID is idempotent: unknown ids are not an error.
		DeleteIdentitiesByID(ctx context.Context, ids ...string) error
		SetLastLogin(ctx context.Context, idt Identity) (Identity, error)
	}

	Service struct {
		conf    *core.Config
		repo    Repository
		mailSvc core.EmailService
		logger  core.Logger
	}
)

func NewService(conf *core.Config, repo Repository, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{
		conf:    conf,
		repo:    repo,
		mailSvc: mailSvc,
		logger:  logger,
	}
}

func (svc *Service) checkUniqueness(email string, exclIdts ...Identity) error {
	if err := svc.repo.CheckEmailUniqueness(context.Background(), email, exclIdts...); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Register enrolls a new Identity. The server assigns the id; callers must
// treat it as opaque.
func (svc *Service) Register(ctx context.Context, ni NewIdentity) (Identity, error) {
	now := time.Now().UTC()
	idt := Identity{
		Name:      ni.Name,
		Email:     ni.Email,
		Role:      ni.Role,
		ClassID:   ni.ClassID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := idt.SetPassword(ni.Password); err != nil {
		return Identity{}, errors.Wrap(err, "setting password")
	}
	idt, err := svc.repo.CreateIdentity(ctx, idt)
	if err != nil {
		return Identity{}, err
	}
	svc.sendWelcomeEmail(idt)
	return idt, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Identity, error) {
	return svc.repo.GetIdentityByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (Identity, error) {
	return svc.repo.GetIdentityByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter, opts core.QueryOptions) ([]Identity, error) {
	return svc.repo.FilterIdentities(ctx, filter, opts)
}

func (svc *Service) Count(ctx context.Context, filter QueryFilter) (int, error) {
	return svc.repo.CountIdentities(ctx, filter)
}

func (svc *Service) Update(ctx context.Context, id string, ui UpdateIdentity) (Identity, error) {
	idt := Identity{
		ID:        id,
		Name:      ui.Name,
		Email:     ui.Email,
		ClassID:   ui.ClassID,
		UpdatedAt: time.Now().UTC(),
	}
	if ui.Password != "" {
		if err := idt.SetPassword(ui.Password); err != nil {
			return Identity{}, errors.Wrap(err, "setting password")
		}
	}
	return svc.repo.UpdateIdentity(ctx, idt, ui.IsActive)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteIdentitiesByID(ctx, ids...)
}

func (svc *Service) SetLastLogin(ctx context.Context, idt Identity) (Identity, error) {
	return svc.repo.SetLastLogin(ctx, idt)
}

// RequestPasswordReset emails a signed reset link to the account, if any.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	idt, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	token, err := MakeToken(idt, svc.conf.SecretKey)
	if err != nil {
		return errors.Wrap(err, "making reset token")
	}
	url := fmt.Sprintf("%s/password-reset?uid=%s&token=%s", svc.conf.FrontendBaseURL, EncodeUID(idt), token)
	svc.sendMail(idt, resetSubject,
		fmt.Sprintf("Hi %s,\n\nFollow this link to reset your password:\n%s\n\n"+
			"If you did not request a reset, you can safely ignore this email.", idt.Name, url))
	return nil
}

// ResetPassword sets a new password after verifying the reset token.
func (svc *Service) ResetPassword(ctx context.Context, rp ResetIdentityPassword) error {
	id, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(errors.New("invalid link"))
	}
	idt, err := svc.GetByID(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return core.NewValidationError(errors.New("invalid link"))
		}
		return err
	}
	if err = verifyToken(idt, rp.Token, svc.conf.SecretKey, svc.conf.PasswordResetTimeoutDelta); err != nil {
		return core.NewValidationError(err)
	}
	if err = idt.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	idt.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateIdentity(ctx, idt, nil)
	return err
}

func (svc *Service) sendWelcomeEmail(idt Identity) {
	svc.sendMail(idt, welcomeSubject,
		fmt.Sprintf("Hi %s,\n\nYour %s %s account is ready.\nSign in at %s/login to get started.",
			idt.Name, svc.conf.AppName, idt.Role, svc.conf.FrontendBaseURL))
}

func (svc *Service) sendMail(idt Identity, subject, body string) {
	if svc.mailSvc == nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: idt.Name, Address: idt.Email}},
		Subject: subject,
		BodyStr: body,
	})
}

package licenses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vantage-app/licensing-backend/internal/access"
	"github.com/vantage-app/licensing-backend/pkg/db/models"
	"github.com/vantage-app/licensing-backend/pkg/enums"
	pkgerrors "github.com/vantage-app/licensing-backend/pkg/errors"
	"github.com/vantage-app/licensing-backend/pkg/licensekey"
	"github.com/vantage-app/licensing-backend/pkg/logger"
)

type licensesRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.License, error)
	FindByCode(ctx context.Context, code string) (*models.License, error)
	BindDevice(ctx context.Context, id uuid.UUID, deviceID, deviceType string, activatedAt time.Time) (bool, error)
	Unbind(ctx context.Context, id uuid.UUID) error
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
}

type contractsRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Contract, error)
}

type subscriptionsRepository interface {
	FindSubscriptionByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
}

type usersRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type notifier interface {
	SendUnbindNotice(ctx context.Context, recipient, licenseCode string) error
}

// ActivateInput carries a device activation request.
type ActivateInput struct {
	Code       string
	DeviceID   string
	DeviceType string
}

// AdminUpdateInput holds the fields a manager or admin may rewrite on a license.
type AdminUpdateInput struct {
	Client     *string
	ExpireDate *time.Time
	PlanType   *enums.PlanType
	Sold       *bool
}

// StatusResult is the public view of a license's binding state.
type StatusResult struct {
	Code       string
	Bound      bool
	Expired    bool
	ExpireDate *time.Time
	PlanType   enums.PlanType
}

// Service exposes license binding, release, and edit semantics.
type Service interface {
	Activate(ctx context.Context, input ActivateInput) (*models.License, error)
	Status(ctx context.Context, code string) (*StatusResult, error)
	Unbind(ctx context.Context, caller access.Caller, licenseID uuid.UUID) (*models.License, error)
	UpdateClient(ctx context.Context, caller access.Caller, licenseID uuid.UUID, client string) (*models.License, error)
	AdminUpdate(ctx context.Context, caller access.Caller, licenseID uuid.UUID, input AdminUpdateInput) (*models.License, error)
}

type service struct {
	repo      licensesRepository
	contracts contractsRepository
	subs      subscriptionsRepository
	users     usersRepository
	notifier  notifier
	log       *logger.Logger
}

// NewService builds a license service backed by the provided repositories and notifier.
func NewService(repo licensesRepository, contracts contractsRepository, subs subscriptionsRepository, users usersRepository, notifier notifier, log *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("license repository required")
	}
	if contracts == nil {
		return nil, fmt.Errorf("contract repository required")
	}
	if subs == nil {
		return nil, fmt.Errorf("subscription repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      repo,
		contracts: contracts,
		subs:      subs,
		users:     users,
		notifier:  notifier,
		log:       log,
	}, nil
}

func (s *service) Activate(ctx context.Context, input ActivateInput) (*models.License, error) {
	code := licensekey.Normalize(input.Code)
	if !licensekey.Valid(code) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "malformed license code")
	}
	deviceID := strings.TrimSpace(input.DeviceID)
	if deviceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "device_id is required")
	}
	deviceType := strings.TrimSpace(input.DeviceType)

	license, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "license not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup license")
	}

	now := time.Now().UTC()
	if license.IsExpired(now) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "license expired")
	}
	if license.IsUsed {
		if license.DeviceID != nil && *license.DeviceID == deviceID {
			return license, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "license already bound to another device")
	}

	bound, err := s.repo.BindDevice(ctx, license.ID, deviceID, deviceType, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bind device")
	}
	if !bound {
		// Lost the race against a concurrent bind. Re-read to distinguish
		// "same device won" (idempotent success) from a genuine conflict.
		current, err := s.repo.FindByID(ctx, license.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload license")
		}
		if current.IsUsed && current.DeviceID != nil && *current.DeviceID == deviceID {
			return current, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "license already bound to another device")
	}

	license.IsUsed = true
	license.DeviceID = &deviceID
	if deviceType != "" {
		license.DeviceType = &deviceType
	}
	license.ActivatedAt = &now
	return license, nil
}

func (s *service) Status(ctx context.Context, code string) (*StatusResult, error) {
	normalized := licensekey.Normalize(code)
	if !licensekey.Valid(normalized) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "malformed license code")
	}

	license, err := s.repo.FindByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "license not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup license")
	}

	return &StatusResult{
		Code:       license.Code,
		Bound:      license.IsUsed,
		Expired:    license.IsExpired(time.Now().UTC()),
		ExpireDate: license.ExpireDate,
		PlanType:   license.PlanType,
	}, nil
}

func (s *service) Unbind(ctx context.Context, caller access.Caller, licenseID uuid.UUID) (*models.License, error) {
	if licenseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "license id is required")
	}

	license, err := s.repo.FindByID(ctx, licenseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "license not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup license")
	}

	ownerEmail, err := s.resolveOwnerEmail(ctx, license)
	if err != nil {
		return nil, err
	}
	if err := access.Require(access.ActionUnbindLicense, caller, ownerEmail); err != nil {
		return nil, err
	}

	if err := s.repo.Unbind(ctx, license.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unbind license")
	}

	license.IsUsed = false
	license.DeviceID = nil
	license.DeviceType = nil
	license.ActivatedAt = nil

	// Notification failure never rolls back the unbind.
	if ownerEmail != "" {
		if err := s.notifier.SendUnbindNotice(ctx, ownerEmail, license.Code); err != nil {
			s.log.Warn(s.log.WithLicenseCode(ctx, license.Code), "unbind notification failed: "+err.Error())
		}
	}
	return license, nil
}

func (s *service) UpdateClient(ctx context.Context, caller access.Caller, licenseID uuid.UUID, client string) (*models.License, error) {
	if licenseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "license id is required")
	}
	client = strings.TrimSpace(client)
	if client == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "client is required")
	}

	license, err := s.repo.FindByID(ctx, licenseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "license not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup license")
	}

	ownerEmail, err := s.resolveOwnerEmail(ctx, license)
	if err != nil {
		return nil, err
	}
	if err := access.Require(access.ActionEditLicense, caller, ownerEmail); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateFields(ctx, license.ID, map[string]interface{}{"client": client}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update license client")
	}
	license.Client = &client
	return license, nil
}

func (s *service) AdminUpdate(ctx context.Context, caller access.Caller, licenseID uuid.UUID, input AdminUpdateInput) (*models.License, error) {
	if licenseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "license id is required")
	}
	if err := access.Require(access.ActionAdminEditLicense, caller, ""); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if input.Client != nil {
		fields["client"] = strings.TrimSpace(*input.Client)
	}
	if input.ExpireDate != nil {
		fields["expire_date"] = *input.ExpireDate
	}
	if input.PlanType != nil {
		if !input.PlanType.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid plan type")
		}
		fields["plan_type"] = *input.PlanType
	}
	if input.Sold != nil {
		fields["sold"] = *input.Sold
	}
	if len(fields) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	license, err := s.repo.FindByID(ctx, licenseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "license not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup license")
	}

	if err := s.repo.UpdateFields(ctx, license.ID, fields); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update license")
	}

	updated, err := s.repo.FindByID(ctx, license.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload license")
	}
	return updated, nil
}

// resolveOwnerEmail walks the mutually exclusive owner reference. A license
// owned by neither a contract nor a subscription is unsold inventory and has
// no owner to match against.
func (s *service) resolveOwnerEmail(ctx context.Context, license *models.License) (string, error) {
	switch {
	case license.ContractID != nil:
		contract, err := s.contracts.FindByID(ctx, *license.ContractID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", nil
			}
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup owning contract")
		}
		return contract.Email, nil
	case license.SubscriptionID != nil:
		sub, err := s.subs.FindSubscriptionByID(ctx, *license.SubscriptionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", nil
			}
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup owning subscription")
		}
		owner, err := s.users.FindByID(ctx, sub.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", nil
			}
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup subscription owner")
		}
		return owner.Email, nil
	default:
		return "", nil
	}
}

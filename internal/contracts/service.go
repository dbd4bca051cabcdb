package contracts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vantage-app/licensing-backend/internal/access"
	"github.com/vantage-app/licensing-backend/pkg/db"
	"github.com/vantage-app/licensing-backend/pkg/db/models"
	"github.com/vantage-app/licensing-backend/pkg/enums"
	pkgerrors "github.com/vantage-app/licensing-backend/pkg/errors"
	"github.com/vantage-app/licensing-backend/pkg/logger"
)

type contractsRepository interface {
	Create(ctx context.Context, contract *models.Contract) (*models.Contract, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	List(ctx context.Context, ownerEmail string) ([]models.Contract, error)
	HighestContractNumber(ctx context.Context) (int64, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type licensesRepository interface {
	CreateBatch(ctx context.Context, rows []models.License) ([]models.License, error)
	ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.License, error)
}

type codeIssuer interface {
	IssueCode(ctx context.Context) (string, error)
}

// CreateContractInput carries the fields for a new contract and its license batch.
type CreateContractInput struct {
	CompanyName        string
	RepresentativeName string
	Email              string
	Phone              string
	Value              decimal.Decimal
	QuoteID            *uuid.UUID
	LicenseQuantity    int
	PlanType           enums.PlanType
	ExpireDays         int
}

// UpdateContractInput holds the fields a manager or admin may rewrite on a contract.
type UpdateContractInput struct {
	CompanyName        *string
	RepresentativeName *string
	Email              *string
	Phone              *string
	Value              *decimal.Decimal
}

// CreateContractResult is the one response that exposes the raw license codes.
type CreateContractResult struct {
	Contract *models.Contract
	Licenses []models.License
}

// Service exposes atomic contract issuance and contract administration.
type Service interface {
	CreateContract(ctx context.Context, caller access.Caller, input CreateContractInput) (*CreateContractResult, error)
	ListContracts(ctx context.Context, caller access.Caller) ([]models.Contract, error)
	GetContractLicenses(ctx context.Context, caller access.Caller, contractID uuid.UUID) ([]models.License, error)
	UpdateContract(ctx context.Context, caller access.Caller, contractID uuid.UUID, input UpdateContractInput) (*models.Contract, error)
	DeleteContract(ctx context.Context, caller access.Caller, contractID uuid.UUID) error
}

type service struct {
	repo              contractsRepository
	licenses          licensesRepository
	issuer            codeIssuer
	numberingRetries  int
	defaultExpireDays int
	log               *logger.Logger
}

// NewService builds a contract service backed by the provided repositories and code issuer.
func NewService(repo contractsRepository, licenses licensesRepository, issuer codeIssuer, numberingRetries, defaultExpireDays int, log *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("contract repository required")
	}
	if licenses == nil {
		return nil, fmt.Errorf("license repository required")
	}
	if issuer == nil {
		return nil, fmt.Errorf("code issuer required")
	}
	if numberingRetries <= 0 {
		return nil, fmt.Errorf("numbering retries must be positive")
	}
	if defaultExpireDays <= 0 {
		return nil, fmt.Errorf("default expire days must be positive")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:              repo,
		licenses:          licenses,
		issuer:            issuer,
		numberingRetries:  numberingRetries,
		defaultExpireDays: defaultExpireDays,
		log:               log,
	}, nil
}

func (s *service) CreateContract(ctx context.Context, caller access.Caller, input CreateContractInput) (*CreateContractResult, error) {
	if err := access.Require(access.ActionCreateContract, caller, ""); err != nil {
		return nil, err
	}
	if err := validateCreateInput(&input); err != nil {
		return nil, err
	}
	if input.ExpireDays == 0 {
		input.ExpireDays = s.defaultExpireDays
	}

	contract, err := s.insertWithNextNumber(ctx, &input)
	if err != nil {
		return nil, err
	}

	rows := make([]models.License, 0, input.LicenseQuantity)
	expireDate := time.Now().UTC().AddDate(0, 0, input.ExpireDays)
	for i := 0; i < input.LicenseQuantity; i++ {
		code, err := s.issuer.IssueCode(ctx)
		if err != nil {
			return nil, s.compensate(ctx, contract, err)
		}
		rows = append(rows, models.License{
			Code:         code,
			PlanType:     input.PlanType,
			ExpireDate:   &expireDate,
			Sold:         true,
			IsStandalone: true,
			ContractID:   &contract.ID,
		})
	}

	created, err := s.licenses.CreateBatch(ctx, rows)
	if err != nil {
		return nil, s.compensate(ctx, contract, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert license batch"))
	}

	return &CreateContractResult{Contract: contract, Licenses: created}, nil
}

// insertWithNextNumber reads the highest existing contract number, inserts
// MAX+1, and retries the whole read-increment-insert step when a concurrent
// creation claims the same number first. The unique constraint on
// contract_number decides the winner.
func (s *service) insertWithNextNumber(ctx context.Context, input *CreateContractInput) (*models.Contract, error) {
	var lastErr error
	for attempt := 0; attempt < s.numberingRetries; attempt++ {
		highest, err := s.repo.HighestContractNumber(ctx)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read highest contract number")
		}

		contract := &models.Contract{
			ContractNumber:     highest + 1,
			CompanyName:        strings.TrimSpace(input.CompanyName),
			RepresentativeName: strings.TrimSpace(input.RepresentativeName),
			Email:              strings.ToLower(strings.TrimSpace(input.Email)),
			Phone:              strings.TrimSpace(input.Phone),
			Value:              input.Value,
			QuoteID:            input.QuoteID,
		}
		created, err := s.repo.Create(ctx, contract)
		if err == nil {
			return created, nil
		}
		if !db.IsUniqueViolation(err, "contracts_contract_number_key") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert contract")
		}
		lastErr = err
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, lastErr, fmt.Sprintf("contract numbering conflicted %d times", s.numberingRetries))
}

// compensate deletes the contract inserted before the license batch failed.
// A contract with zero or partial licenses must never survive; if even the
// compensating delete fails, the error is surfaced distinctly so an operator
// can clean up the orphaned row.
func (s *service) compensate(ctx context.Context, contract *models.Contract, cause error) error {
	if delErr := s.repo.Delete(ctx, contract.ID); delErr != nil {
		s.log.Error(ctx, fmt.Sprintf("compensating delete failed for contract %d", contract.ContractNumber), delErr)
		return pkgerrors.Wrap(pkgerrors.CodeRollbackFailed, delErr, fmt.Sprintf("contract %d left without licenses", contract.ContractNumber))
	}
	return cause
}

func (s *service) ListContracts(ctx context.Context, caller access.Caller) ([]models.Contract, error) {
	// USER callers see only their own contracts; managers and admins see all.
	ownerScope := ""
	if caller.Role == enums.RoleUser {
		ownerScope = caller.Email
	}
	rows, err := s.repo.List(ctx, ownerScope)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list contracts")
	}
	return rows, nil
}

func (s *service) GetContractLicenses(ctx context.Context, caller access.Caller, contractID uuid.UUID) ([]models.License, error) {
	if contractID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contract id is required")
	}

	contract, err := s.repo.FindByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "contract not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup contract")
	}
	if err := access.Require(access.ActionViewContract, caller, contract.Email); err != nil {
		return nil, err
	}

	rows, err := s.licenses.ListByContract(ctx, contractID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list contract licenses")
	}
	return rows, nil
}

func (s *service) UpdateContract(ctx context.Context, caller access.Caller, contractID uuid.UUID, input UpdateContractInput) (*models.Contract, error) {
	if contractID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contract id is required")
	}
	if err := access.Require(access.ActionUpdateContract, caller, ""); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if input.CompanyName != nil {
		if strings.TrimSpace(*input.CompanyName) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "company_name cannot be empty")
		}
		fields["company_name"] = strings.TrimSpace(*input.CompanyName)
	}
	if input.RepresentativeName != nil {
		fields["representative_name"] = strings.TrimSpace(*input.RepresentativeName)
	}
	if input.Email != nil {
		if strings.TrimSpace(*input.Email) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "email cannot be empty")
		}
		fields["email"] = strings.ToLower(strings.TrimSpace(*input.Email))
	}
	if input.Phone != nil {
		fields["phone"] = strings.TrimSpace(*input.Phone)
	}
	if input.Value != nil {
		if input.Value.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "value cannot be negative")
		}
		fields["value"] = *input.Value
	}
	if len(fields) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	if _, err := s.repo.FindByID(ctx, contractID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "contract not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup contract")
	}

	if err := s.repo.UpdateFields(ctx, contractID, fields); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update contract")
	}

	updated, err := s.repo.FindByID(ctx, contractID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload contract")
	}
	return updated, nil
}

func (s *service) DeleteContract(ctx context.Context, caller access.Caller, contractID uuid.UUID) error {
	if contractID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "contract id is required")
	}
	if err := access.Require(access.ActionDeleteContract, caller, ""); err != nil {
		return err
	}

	contract, err := s.repo.FindByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "contract not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup contract")
	}

	if err := s.repo.Delete(ctx, contract.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete contract")
	}
	return nil
}

func validateCreateInput(input *CreateContractInput) error {
	if strings.TrimSpace(input.CompanyName) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "company_name is required")
	}
	if strings.TrimSpace(input.RepresentativeName) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "representative_name is required")
	}
	if strings.TrimSpace(input.Email) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if input.LicenseQuantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "license_quantity must be at least 1")
	}
	if input.Value.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "value cannot be negative")
	}
	// Contract licenses are standalone; the annual plan is the bulk-sale default.
	if input.PlanType == "" {
		input.PlanType = enums.PlanTypeAnnual
	}
	if !input.PlanType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid plan type")
	}
	if input.ExpireDays < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "expire_days cannot be negative")
	}
	return nil
}

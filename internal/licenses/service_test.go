package licenses

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vantage-app/licensing-backend/internal/access"
	"github.com/vantage-app/licensing-backend/pkg/db/models"
	"github.com/vantage-app/licensing-backend/pkg/enums"
	pkgerrors "github.com/vantage-app/licensing-backend/pkg/errors"
	"github.com/vantage-app/licensing-backend/pkg/logger"
)

type stubLicenseRepo struct {
	byID        map[uuid.UUID]*models.License
	byCode      map[string]*models.License
	bindOK      bool
	bindErr     error
	bindCalls   int
	unbindErr   error
	unbindCalls int
	lastFields  map[string]interface{}
	updateErr   error
}

func newStubLicenseRepo(rows ...*models.License) *stubLicenseRepo {
	s := &stubLicenseRepo{
		byID:   map[uuid.UUID]*models.License{},
		byCode: map[string]*models.License{},
		bindOK: true,
	}
	for _, row := range rows {
		s.byID[row.ID] = row
		s.byCode[row.Code] = row
	}
	return s
}

func (s *stubLicenseRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.License, error) {
	if row, ok := s.byID[id]; ok {
		copied := *row
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubLicenseRepo) FindByCode(ctx context.Context, code string) (*models.License, error) {
	if row, ok := s.byCode[code]; ok {
		copied := *row
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubLicenseRepo) BindDevice(ctx context.Context, id uuid.UUID, deviceID, deviceType string, activatedAt time.Time) (bool, error) {
	s.bindCalls++
	if s.bindErr != nil {
		return false, s.bindErr
	}
	if !s.bindOK {
		return false, nil
	}
	if row, ok := s.byID[id]; ok {
		row.IsUsed = true
		row.DeviceID = &deviceID
		if deviceType != "" {
			row.DeviceType = &deviceType
		}
		row.ActivatedAt = &activatedAt
	}
	return true, nil
}

func (s *stubLicenseRepo) Unbind(ctx context.Context, id uuid.UUID) error {
	s.unbindCalls++
	if s.unbindErr != nil {
		return s.unbindErr
	}
	if row, ok := s.byID[id]; ok {
		row.IsUsed = false
		row.DeviceID = nil
		row.DeviceType = nil
		row.ActivatedAt = nil
	}
	return nil
}

func (s *stubLicenseRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.lastFields = fields
	if row, ok := s.byID[id]; ok {
		if client, ok := fields["client"].(string); ok {
			row.Client = &client
		}
		if sold, ok := fields["sold"].(bool); ok {
			row.Sold = sold
		}
	}
	return nil
}

type stubContractRepo struct {
	contract *models.Contract
}

func (s *stubContractRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	if s.contract == nil || s.contract.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.contract, nil
}

type stubSubRepo struct {
	sub *models.Subscription
}

func (s *stubSubRepo) FindSubscriptionByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	if s.sub == nil || s.sub.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.sub, nil
}

type stubUserRepo struct {
	user *models.User
}

func (s *stubUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

type stubNotifier struct {
	err        error
	calls      int
	recipient  string
	lastCode   string
	lastFailed bool
}

func (s *stubNotifier) SendUnbindNotice(ctx context.Context, recipient, licenseCode string) error {
	s.calls++
	s.recipient = recipient
	s.lastCode = licenseCode
	if s.err != nil {
		s.lastFailed = true
		return s.err
	}
	return nil
}

func newServiceForTests(repo *stubLicenseRepo, contracts *stubContractRepo, subs *stubSubRepo, users *stubUserRepo, n *stubNotifier) Service {
	if repo == nil {
		repo = newStubLicenseRepo()
	}
	if contracts == nil {
		contracts = &stubContractRepo{}
	}
	if subs == nil {
		subs = &stubSubRepo{}
	}
	if users == nil {
		users = &stubUserRepo{}
	}
	if n == nil {
		n = &stubNotifier{}
	}
	svc, err := NewService(repo, contracts, subs, users, n, logger.New(logger.Options{ServiceName: "test"}))
	if err != nil {
		panic(err)
	}
	return svc
}

func availableLicense(code string) *models.License {
	return &models.License{
		ID:       uuid.New(),
		Code:     code,
		PlanType: enums.PlanTypeAnnual,
		Sold:     true,
	}
}

func assertCode(t *testing.T, err error, want pkgerrors.Code) {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	if typed.Code() != want {
		t.Fatalf("expected code %s, got %s", want, typed.Code())
	}
}

func TestActivateSuccess(t *testing.T) {
	row := availableLicense("AAAAA-BBBBB-CCCCC-DDDDD-EEEEE")
	repo := newStubLicenseRepo(row)
	svc := newServiceForTests(repo, nil, nil, nil, nil)

	got, err := svc.Activate(context.Background(), ActivateInput{
		Code:       " aaaaa-bbbbb-ccccc-ddddd-eeeee ",
		DeviceID:   "device-1",
		DeviceType: "windows",
	})
	if err != nil {
		t.Fatalf("Activate returned error: %v", err)
	}
	if !got.IsUsed || got.DeviceID == nil || *got.DeviceID != "device-1" {
		t.Fatalf("expected bound license, got %+v", got)
	}
	if got.ActivatedAt == nil {
		t.Fatal("expected activated_at stamped")
	}
}

func TestActivateSameDeviceIdempotent(t *testing.T) {
	row := availableLicense("AAAAA-BBBBB-CCCCC-DDDDD-EEEEE")
	device := "device-1"
	row.IsUsed = true
	row.DeviceID = &device
	repo := newStubLicenseRepo(row)
	svc := newServiceForTests(repo, nil, nil, nil, nil)

	got, err := svc.Activate(context.Background(), ActivateInput{Code: row.Code, DeviceID: device})
	if err != nil {
		t.Fatalf("expected idempotent success, got %v", err)
	}
	if got.DeviceID == nil || *got.DeviceID != device {
		t.Fatalf("expected same device, got %+v", got)
	}
	if repo.bindCalls != 0 {
		t.Fatalf("expected no bind write, got %d", repo.bindCalls)
	}
}

func TestActivateAlreadyBound(t *testing.T) {
	row := availableLicense("AAAAA-BBBBB-CCCCC-DDDDD-EEEEE")
	device := "device-1"
	row.IsUsed = true
	row.DeviceID = &device
	svc := newServiceForTests(newStubLicenseRepo(row), nil, nil, nil, nil)

	_, err := svc.Activate(context.Background(), ActivateInput{Code: row.Code, DeviceID: "device-2"})
	assertCode(t, err, pkgerrors.CodeConflict)
}

func TestActivateExpired(t *testing.T) {
	row := availableLicense("AAAAA-BBBBB-CCCCC-DDDDD-EEEEE")
	past := time.Now().Add(-24 * time.Hour)
	row.ExpireDate = &past
	svc := newServiceForTests(newStubLicenseRepo(row), nil, nil, nil, nil)

	_, err := svc.Activate(context.Background(), ActivateInput{Code: row.Code, DeviceID: "device-1"})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestActivateLostRaceToOtherDevice(t *testing.T) {
	row := availableLicense("AAAAA-BBBBB-CCCCC-DDDDD-EEEEE")
	repo := newStubLicenseRepo(row)
	repo.bindOK = false
	svc := newServiceForTests(repo, nil, nil, nil, nil)

	// The advisory read sees an unbound row; the conditional write then loses
	// to a concurrent binder and the reload finds another device.
	other := "device-2"
	repo.byID[row.ID].DeviceID = &other

	_, err := svc.Activate(context.Background(), ActivateInput{Code: row.Code, DeviceID: "device-1"})
	assertCode(t, err, pkgerrors.CodeConflict)
}

func TestActivateMalformedCode(t *testing.T) {
	svc := newServiceForTests(nil, nil, nil, nil, nil)
	_, err := svc.Activate(context.Background(), ActivateInput{Code: "short", DeviceID: "d"})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestActivateNotFound(t *testing.T) {
	svc := newServiceForTests(nil, nil, nil, nil, nil)
	_, err := svc.Activate(context.Background(), ActivateInput{Code: "AAAAA-BBBBB-CCCCC-DDDDD-EEEEE", DeviceID: "d"})
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestUnbindOwnerViaContract(t *testing.T) {
	contract := &models.Contract{ID: uuid.New(), Email: "owner@corp.example"}
	row := availableLicense("AAAAA-BBBBB-CCCCC-DDDDD-EEEEE")
	device := "device-1"
	row.IsUsed = true
	row.DeviceID = &device
	row.ContractID = &contract.ID

	repo := newStubLicenseRepo(row)
	n := &stubNotifier{}
	svc := newServiceForTests(repo, &stubContractRepo{contract: contract}, nil, nil, n)

	caller := access.Caller{Email: "owner@corp.example", Role: enums.RoleUser}
	got, err := svc.Unbind(context.Background(), caller, row.ID)
	if err != nil {
		t.Fatalf("Unbind returned error: %v", err)
	}
	if got.IsUsed || got.DeviceID != nil {
		t.Fatalf("expected unbound license, got %+v", got)
	}
	if n.calls != 1 || n.recipient != "owner@corp.example" {
		t.Fatalf("expected one notification to owner, got %d to %q", n.calls, n.recipient)
	}
}

func TestUnbindForbiddenForForeignUser(t *testing.T) {
	contract := &models.Contract{ID: uuid.New(), Email: "owner@corp.example"}
	row := availableLicense("AAAAA-BBBBB-CCCCC-DDDDD-EEEEE")
	row.ContractID = &contract.ID
	repo := newStubLicenseRepo(row)
	svc := newServiceForTests(repo, &stubContractRepo{contract: contract}, nil, nil, nil)

	caller := access.Caller{Email: "intruder@corp.example", Role: enums.RoleUser}
	_, err := svc.Unbind(context.Background(), caller, row.ID)
	assertCode(t, err, pkgerrors.CodeForbidden)
	if repo.unbindCalls != 0 {
		t.Fatal("expected no unbind write after forbidden")
	}
}

func TestUnbindAdminBypassesOwnership(t *testing.T) {
	contract := &models.Contract{ID: uuid.New(), Email: "owner@corp.example"}
	row := availableLicense("AAAAA-BBBBB-CCCCC-DDDDD-EEEEE")
	row.ContractID = &contract.ID
	svc := newServiceForTests(newStubLicenseRepo(row), &stubContractRepo{contract: contract}, nil, nil, nil)

	caller := access.Caller{Email: "ops@vantage.app", Role: enums.RoleAdmin}
	if _, err := svc.Unbind(context.Background(), caller, row.ID); err != nil {
		t.Fatalf("admin unbind returned error: %v", err)
	}
}

func TestUnbindNotificationFailureIgnored(t *testing.T) {
	contract := &models.Contract{ID: uuid.New(), Email: "owner@corp.example"}
	row := availableLicense("AAAAA-BBBBB-CCCCC-DDDDD-EEEEE")
	row.ContractID = &contract.ID
	n := &stubNotifier{err: errors.New("smtp down")}
	svc := newServiceForTests(newStubLicenseRepo(row), &stubContractRepo{contract: contract}, nil, nil, n)

	caller := access.Caller{Email: "owner@corp.example", Role: enums.RoleUser}
	if _, err := svc.Unbind(context.Background(), caller, row.ID); err != nil {
		t.Fatalf("notification failure must not fail unbind, got %v", err)
	}
	if !n.lastFailed {
		t.Fatal("expected notifier to have been called and failed")
	}
}

func TestUnbindOwnerViaSubscription(t *testing.T) {
	owner := &models.User{ID: uuid.New(), Email: "subscriber@home.example", Role: enums.RoleUser}
	sub := &models.Subscription{ID: uuid.New(), UserID: owner.ID}
	row := availableLicense("AAAAA-BBBBB-CCCCC-DDDDD-EEEEE")
	row.SubscriptionID = &sub.ID
	row.IsStandalone = false

	svc := newServiceForTests(newStubLicenseRepo(row), nil, &stubSubRepo{sub: sub}, &stubUserRepo{user: owner}, nil)

	caller := access.Caller{UserID: owner.ID, Email: owner.Email, Role: enums.RoleUser}
	if _, err := svc.Unbind(context.Background(), caller, row.ID); err != nil {
		t.Fatalf("subscription owner unbind returned error: %v", err)
	}
}

func TestUpdateClient(t *testing.T) {
	contract := &models.Contract{ID: uuid.New(), Email: "owner@corp.example"}
	row := availableLicense("AAAAA-BBBBB-CCCCC-DDDDD-EEEEE")
	row.ContractID = &contract.ID
	repo := newStubLicenseRepo(row)
	svc := newServiceForTests(repo, &stubContractRepo{contract: contract}, nil, nil, nil)

	caller := access.Caller{Email: "owner@corp.example", Role: enums.RoleUser}
	got, err := svc.UpdateClient(context.Background(), caller, row.ID, "  Design Workstation 3  ")
	if err != nil {
		t.Fatalf("UpdateClient returned error: %v", err)
	}
	if got.Client == nil || *got.Client != "Design Workstation 3" {
		t.Fatalf("expected trimmed client, got %+v", got.Client)
	}
}

func TestAdminUpdateRejectsUserRole(t *testing.T) {
	row := availableLicense("AAAAA-BBBBB-CCCCC-DDDDD-EEEEE")
	svc := newServiceForTests(newStubLicenseRepo(row), nil, nil, nil, nil)

	sold := false
	caller := access.Caller{Email: "user@home.example", Role: enums.RoleUser}
	_, err := svc.AdminUpdate(context.Background(), caller, row.ID, AdminUpdateInput{Sold: &sold})
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestAdminUpdateNoFields(t *testing.T) {
	row := availableLicense("AAAAA-BBBBB-CCCCC-DDDDD-EEEEE")
	svc := newServiceForTests(newStubLicenseRepo(row), nil, nil, nil, nil)

	caller := access.Caller{Email: "manager@vantage.app", Role: enums.RoleManager}
	_, err := svc.AdminUpdate(context.Background(), caller, row.ID, AdminUpdateInput{})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestAdminUpdateSold(t *testing.T) {
	row := availableLicense("AAAAA-BBBBB-CCCCC-DDDDD-EEEEE")
	repo := newStubLicenseRepo(row)
	svc := newServiceForTests(repo, nil, nil, nil, nil)

	sold := false
	caller := access.Caller{Email: "manager@vantage.app", Role: enums.RoleManager}
	got, err := svc.AdminUpdate(context.Background(), caller, row.ID, AdminUpdateInput{Sold: &sold})
	if err != nil {
		t.Fatalf("AdminUpdate returned error: %v", err)
	}
	if got.Sold {
		t.Fatal("expected sold cleared")
	}
}

func TestStatusReportsExpiry(t *testing.T) {
	row := availableLicense("AAAAA-BBBBB-CCCCC-DDDDD-EEEEE")
	past := time.Now().Add(-time.Hour)
	row.ExpireDate = &past
	svc := newServiceForTests(newStubLicenseRepo(row), nil, nil, nil, nil)

	got, err := svc.Status(context.Background(), row.Code)
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if !got.Expired || got.Bound {
		t.Fatalf("expected expired unbound status, got %+v", got)
	}
}

package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"veriboard/internal/authz"
	"veriboard/internal/models"
	"veriboard/internal/repositories"
	"veriboard/internal/utils"
)

// ===== OTP =====

type fakeOTPRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[string]*models.OTPCode
}

func newFakeOTPRepo() *fakeOTPRepo {
	return &fakeOTPRepo{rows: map[string]*models.OTPCode{}}
}

func otpKey(email string, purpose models.OTPPurpose) string { return string(purpose) + "|" + email }

func (r *fakeOTPRepo) Upsert(_ context.Context, email string, purpose models.OTPPurpose, codeHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[otpKey(email, purpose)]; ok {
		row.CodeHash, row.Attempts, row.ExpiresAt = codeHash, 0, expiresAt
		return nil
	}
	r.nextID++
	r.rows[otpKey(email, purpose)] = &models.OTPCode{
		ID: r.nextID, Email: email, Purpose: purpose, CodeHash: codeHash, ExpiresAt: expiresAt, CreatedAt: time.Now(),
	}
	return nil
}

func (r *fakeOTPRepo) GetActive(_ context.Context, email string, purpose models.OTPPurpose, now time.Time) (*models.OTPCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[otpKey(email, purpose)]
	if !ok || !row.ExpiresAt.After(now) {
		return nil, repositories.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (r *fakeOTPRepo) find(id int64, hash string) (string, *models.OTPCode) {
	for k, row := range r.rows {
		if row.ID == id && row.CodeHash == hash {
			return k, row
		}
	}
	return "", nil
}

func (r *fakeOTPRepo) IncrementAttempts(_ context.Context, id int64, codeHash string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, row := r.find(id, codeHash)
	if row == nil {
		return 0, repositories.ErrNotFound
	}
	row.Attempts++
	return row.Attempts, nil
}

func (r *fakeOTPRepo) Delete(_ context.Context, id int64, codeHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, row := r.find(id, codeHash)
	if row == nil {
		return false, nil
	}
	delete(r.rows, k)
	return true, nil
}

func (r *fakeOTPRepo) PurgeExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, row := range r.rows {
		if row.ExpiresAt.Before(before) {
			delete(r.rows, k)
			n++
		}
	}
	return n, nil
}

func (r *fakeOTPRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// ===== users =====

type fakeUserRepo struct {
	mu         sync.Mutex
	users      map[int]*models.User
	candidates map[int]*models.Candidate
	companies  *fakeCompanyRepo
	failCreate error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[int]*models.User{}, candidates: map[int]*models.Candidate{}}
}

func (r *fakeUserRepo) insert(u *models.User) error {
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return repositories.ErrDuplicate
		}
	}
	u.ID = len(r.users) + 1
	u.CreatedAt, u.UpdatedAt = time.Now(), time.Now()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insert(u)
}

func (r *fakeUserRepo) CreateWithProfile(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate != nil {
		return r.failCreate
	}
	if err := r.insert(u); err != nil {
		return err
	}
	switch u.AccountType {
	case authz.AccountCandidate:
		id := len(r.candidates) + 1
		r.candidates[id] = &models.Candidate{ID: id, UserID: u.ID, FullName: u.Name}
	case authz.AccountCompany:
		if r.companies != nil {
			r.companies.add(u.ID, u.Name, models.StatusPending)
		}
	}
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id int, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (r *fakeUserRepo) GetCandidateByUserID(_ context.Context, userID int) (*models.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.candidates {
		if c.UserID == userID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeUserRepo) GetCandidateByID(_ context.Context, id int) (*models.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.candidates[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// addCandidate creates a candidate account directly and returns its actor.
func (r *fakeUserRepo) addCandidate(email, name string) Actor {
	u := &models.User{Email: email, Name: name, AccountType: authz.AccountCandidate}
	if err := r.CreateWithProfile(context.Background(), u); err != nil {
		panic(err)
	}
	return Actor{UserID: u.ID, AccountType: authz.AccountCandidate}
}

func (r *fakeUserRepo) addAccount(email, accountType string) Actor {
	u := &models.User{Email: email, Name: email, AccountType: accountType}
	if err := r.Create(context.Background(), u); err != nil {
		panic(err)
	}
	return Actor{UserID: u.ID, AccountType: accountType}
}

// ===== companies =====

type fakeCompanyRepo struct {
	mu   sync.Mutex
	rows map[int]*models.Company
}

func newFakeCompanyRepo() *fakeCompanyRepo {
	return &fakeCompanyRepo{rows: map[int]*models.Company{}}
}

func (r *fakeCompanyRepo) add(userID int, name, status string) *models.Company {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := &models.Company{ID: len(r.rows) + 1, UserID: userID, CompanyName: name, VerificationStatus: status}
	r.rows[c.ID] = c
	cp := *c
	return &cp
}

func (r *fakeCompanyRepo) get(id int) *models.Company {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *r.rows[id]
	return &cp
}

func (r *fakeCompanyRepo) GetByID(_ context.Context, id int) (*models.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCompanyRepo) GetByUserID(_ context.Context, userID int) (*models.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if c.UserID == userID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeCompanyRepo) FindVerifiedByName(_ context.Context, normalizedName string) (*models.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int, 0, len(r.rows))
	for id := range r.rows {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		c := r.rows[id]
		if c.VerificationStatus == models.StatusVerified && utils.NormalizeCompanyName(c.CompanyName) == normalizedName {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeCompanyRepo) ListPending(_ context.Context) ([]*models.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]*models.Company, 0)
	for _, c := range r.rows {
		if (c.VerificationStatus == models.StatusPending || c.VerificationStatus == models.StatusInReview) && c.VerificationDocument != "" {
			cp := *c
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (r *fakeCompanyRepo) AttachDocument(ctx context.Context, id int, key string, from []string, upload repositories.UploadFunc) (*models.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok || !inList(from, c.VerificationStatus) {
		return nil, repositories.ErrConflict
	}
	if err := upload(ctx); err != nil {
		return nil, err
	}
	c.VerificationDocument, c.VerificationStatus, c.RejectionReason = key, models.StatusPending, ""
	c.VerifiedBy, c.VerifiedAt = nil, nil
	cp := *c
	return &cp, nil
}

func (r *fakeCompanyRepo) UpdateStatus(_ context.Context, id int, ch models.StatusChange) (*models.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok || !inList(ch.From, c.VerificationStatus) || c.VerificationDocument == "" {
		return nil, repositories.ErrConflict
	}
	c.VerificationStatus, c.RejectionReason = ch.To, ch.RejectionReason
	actor := ch.ActorID
	c.VerifiedBy = &actor
	if ch.To == models.StatusVerified {
		now := time.Now()
		c.VerifiedAt = &now
	}
	cp := *c
	return &cp, nil
}

// ===== employments =====

type fakeEmploymentRepo struct {
	mu   sync.Mutex
	rows map[int]*models.Employment
}

func newFakeEmploymentRepo() *fakeEmploymentRepo {
	return &fakeEmploymentRepo{rows: map[int]*models.Employment{}}
}

func (r *fakeEmploymentRepo) Create(_ context.Context, e *models.Employment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.ID = len(r.rows) + 1
	e.CreatedAt, e.UpdatedAt = time.Now(), time.Now()
	cp := *e
	r.rows[e.ID] = &cp
	return nil
}

func (r *fakeEmploymentRepo) GetByID(_ context.Context, id int) (*models.Employment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *fakeEmploymentRepo) ListByCandidate(_ context.Context, candidateID int) ([]*models.Employment, error) {
	return r.filter(func(e *models.Employment) bool { return e.CandidateID == candidateID }), nil
}

func (r *fakeEmploymentRepo) ListForCompany(_ context.Context, companyID int, statuses []string) ([]*models.Employment, error) {
	return r.filter(func(e *models.Employment) bool {
		return e.CompanyID != nil && *e.CompanyID == companyID && inList(statuses, e.VerificationStatus)
	}), nil
}

func (r *fakeEmploymentRepo) filter(keep func(*models.Employment) bool) []*models.Employment {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]*models.Employment, 0)
	for id := 1; id <= len(r.rows); id++ {
		if e, ok := r.rows[id]; ok && keep(e) {
			cp := *e
			res = append(res, &cp)
		}
	}
	return res
}

func (r *fakeEmploymentRepo) AttachDocument(ctx context.Context, id int, key, status string, from []string, upload repositories.UploadFunc) (*models.Employment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[id]
	if !ok || !inList(from, e.VerificationStatus) {
		return nil, repositories.ErrConflict
	}
	if err := upload(ctx); err != nil {
		return nil, err
	}
	e.DocumentKey, e.HasDocument, e.VerificationStatus, e.RejectionReason = key, true, status, ""
	e.VerifiedBy, e.VerifiedAt = nil, nil
	cp := *e
	return &cp, nil
}

func (r *fakeEmploymentRepo) UpdateStatus(_ context.Context, id int, ch models.StatusChange) (*models.Employment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[id]
	if !ok || !inList(ch.From, e.VerificationStatus) {
		return nil, repositories.ErrConflict
	}
	e.VerificationStatus, e.Notes, e.RejectionReason = ch.To, ch.Notes, ch.RejectionReason
	actor := ch.ActorID
	e.VerifiedBy = &actor
	e.VerifiedAt = nil
	if ch.To == models.StatusVerified {
		now := time.Now()
		e.VerifiedAt = &now
	}
	cp := *e
	return &cp, nil
}

func inList(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// ===== storage / notifications =====

type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
}

func newFakeStore() *fakeStore { return &fakeStore{objects: map[string][]byte{}} }

func (s *fakeStore) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = b
	return nil
}

func (s *fakeStore) PresignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	return "https://storage.test/" + key + "?ttl=" + ttl.String(), nil
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *fakeStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) NotifyAdmins(_ context.Context, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

// captureSender records dispatched codes instead of mailing them; async sends are recorded synchronously.
type captureSender struct {
	mu        sync.Mutex
	codes     map[string]string
	delivered bool
}

func newCaptureSender() *captureSender {
	return &captureSender{codes: map[string]string{}, delivered: true}
}

func (c *captureSender) SendCode(_ context.Context, email, code string, purpose models.OTPPurpose) DeliveryResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[otpKey(email, purpose)] = code
	if !c.delivered {
		return DeliveryResult{Error: "smtp down"}
	}
	return DeliveryResult{Delivered: true, Transport: "capture", Attempts: 1}
}

func (c *captureSender) SendCodeAsync(ctx context.Context, email, code string, purpose models.OTPPurpose) {
	c.SendCode(ctx, email, code, purpose)
}

func (c *captureSender) code(email string, purpose models.OTPPurpose) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codes[otpKey(email, purpose)]
}

func pdfUpload(content string) DocumentUpload {
	return DocumentUpload{
		Reader:      bytes.NewReader([]byte(content)),
		Size:        int64(len(content)),
		ContentType: "application/pdf",
		Filename:    "proof.pdf",
	}
}

// wrongCode returns a well-formed code that differs from the real one.
func wrongCode(code string) string {
	if strings.HasPrefix(code, "1") {
		return "200000"
	}
	return "100000"
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"stablesend/internal/config"
	"stablesend/internal/engine"
	"stablesend/internal/ledger"
	"stablesend/internal/models"
	"stablesend/internal/validation"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	users     map[string]*models.User
	wallets   map[string][]models.Wallet
	transfers []models.Transfer
	setupErr  error
}

func newMockStore() *mockStore {
	return &mockStore{
		users:   make(map[string]*models.User),
		wallets: make(map[string][]models.Wallet),
	}
}

func (m *mockStore) GetOrCreateUserByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := m.users[email]; ok {
		return u, nil
	}
	u := &models.User{ID: "u-" + email, Email: email}
	m.users[email] = u
	return u, nil
}

func (m *mockStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := m.users[email]; ok {
		return u, nil
	}
	return nil, ledger.ErrNotFound
}

func (m *mockStore) SetPreferredNetwork(_ context.Context, userID string, network models.NetworkID) error {
	if m.setupErr != nil {
		return m.setupErr
	}
	for _, u := range m.users {
		if u.ID == userID {
			if u.OnboardingCompleted {
				return ledger.ErrAlreadyOnboarded
			}
			u.PreferredNetwork = network
			u.OnboardingCompleted = true
			return nil
		}
	}
	return ledger.ErrNotFound
}

func (m *mockStore) CreateWallet(_ context.Context, w *models.Wallet) error {
	w.ID = "wallet-" + string(w.Network)
	m.wallets[w.UserID] = append(m.wallets[w.UserID], *w)
	return nil
}

func (m *mockStore) GetWalletsByUser(_ context.Context, userID string) ([]models.Wallet, error) {
	return m.wallets[userID], nil
}

func (m *mockStore) ListTransfersForUser(_ context.Context, userID, email string, _, _ int) ([]models.Transfer, error) {
	var out []models.Transfer
	for _, t := range m.transfers {
		if t.SenderID == userID || t.RecipientEmail == email {
			out = append(out, t)
		}
	}
	return out, nil
}

type mockSettler struct {
	transfer *models.Transfer
	err      error
	gotReq   engine.SettleRequest
}

func (m *mockSettler) RouteAndSettle(_ context.Context, req engine.SettleRequest) (*models.Transfer, error) {
	m.gotReq = req
	return m.transfer, m.err
}

type mockBalances struct {
	total     decimal.Decimal
	breakdown map[string]decimal.Decimal
}

func (m *mockBalances) Aggregate(context.Context, []string) (decimal.Decimal, map[string]decimal.Decimal) {
	return m.total, m.breakdown
}

type mockCustody struct {
	provisioned []models.ProvisionedWallet
	err         error
}

func (m *mockCustody) CreateWallets(context.Context, string, []models.NetworkID) ([]models.ProvisionedWallet, error) {
	return m.provisioned, m.err
}

func (m *mockCustody) GetTokenBalance(context.Context, string) ([]models.TokenBalance, error) {
	return nil, errors.New("not implemented")
}

func (m *mockCustody) Transfer(context.Context, models.CustodyTransfer) (string, error) {
	return "", errors.New("not implemented")
}

type notification struct{ kind, to string }

type mockNotifier struct {
	sent []notification
}

func (m *mockNotifier) PaymentReceived(_ context.Context, to, _, _ string) error {
	m.sent = append(m.sent, notification{"received", to})
	return nil
}

func (m *mockNotifier) PaymentSent(_ context.Context, to, _, _ string) error {
	m.sent = append(m.sent, notification{"sent", to})
	return nil
}

func (m *mockNotifier) Invite(_ context.Context, to, _, _ string) error {
	m.sent = append(m.sent, notification{"invite", to})
	return nil
}

func testNetworks() map[models.NetworkID]config.NetworkConfig {
	return map[models.NetworkID]config.NetworkConfig{
		models.BaseSepolia: {DisplayName: "Base Sepolia", TokenAddress: "0x1", SettlementWalletID: "settle-base"},
		models.ArcTestnet:  {DisplayName: "Arc Testnet", TokenAddress: "0x2", SettlementWalletID: "settle-arc"},
	}
}

type testServer struct {
	server   *Server
	store    *mockStore
	settler  *mockSettler
	balances *mockBalances
	custody  *mockCustody
	notifier *mockNotifier
}

func newTestServer() *testServer {
	logger := zerolog.Nop()
	ts := &testServer{
		store:    newMockStore(),
		settler:  &mockSettler{},
		balances: &mockBalances{total: decimal.Zero, breakdown: map[string]decimal.Decimal{}},
		custody:  &mockCustody{},
		notifier: &mockNotifier{},
	}
	ts.server = NewServer(ts.store, ts.settler, ts.balances, ts.custody, ts.notifier, testNetworks(), &logger)
	return ts
}

func (ts *testServer) request(t *testing.T, method, path, identity string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reader).Encode(body))
	}
	req := httptest.NewRequest(method, path, &reader)
	if identity != "" {
		req.Header.Set(identityHeader, identity)
	}
	rec := httptest.NewRecorder()
	ts.server.Routes().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) seedUser(email string, network models.NetworkID, wallets ...models.Wallet) *models.User {
	u := &models.User{ID: "u-" + email, Email: email, PreferredNetwork: network, OnboardingCompleted: network != ""}
	ts.store.users[email] = u
	for i := range wallets {
		wallets[i].UserID = u.ID
	}
	ts.store.wallets[u.ID] = wallets
	return u
}

func TestCreateTransferConfirmed(t *testing.T) {
	ts := newTestServer()
	ts.seedUser("alice@example.com", models.BaseSepolia, models.Wallet{Handle: "h1", Network: models.BaseSepolia})
	ts.seedUser("bob@example.com", models.BaseSepolia, models.Wallet{Handle: "h2", Network: models.BaseSepolia})
	ts.settler.transfer = &models.Transfer{
		ID:     "t-1",
		Amount: "10",
		Status: models.StatusConfirmed,
		Kind:   models.KindSameNetwork,
	}

	rec := ts.request(t, http.MethodPost, "/v1/transfers", "alice@example.com",
		map[string]string{"recipientEmail": "bob@example.com", "amount": "10"})

	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp transferResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "t-1", resp.Transfer.ID)
	assert.Empty(t, resp.Warning)

	assert.Equal(t, "10", ts.settler.gotReq.Amount)
	assert.Equal(t, "alice@example.com", ts.settler.gotReq.Sender.Email)

	require.Len(t, ts.notifier.sent, 2)
	assert.Equal(t, notification{"sent", "alice@example.com"}, ts.notifier.sent[0])
	assert.Equal(t, notification{"received", "bob@example.com"}, ts.notifier.sent[1])
}

func TestCreateTransferStranded(t *testing.T) {
	ts := newTestServer()
	ts.seedUser("alice@example.com", models.BaseSepolia, models.Wallet{Handle: "h1", Network: models.BaseSepolia})
	ts.seedUser("bob@example.com", models.ArcTestnet, models.Wallet{Handle: "h2", Network: models.ArcTestnet})
	ts.settler.transfer = &models.Transfer{
		ID:     "t-2",
		Status: models.StatusStranded,
		Refs:   models.TransferRefs{DepositRef: "dep-1"},
	}

	rec := ts.request(t, http.MethodPost, "/v1/transfers", "alice@example.com",
		map[string]string{"recipientEmail": "bob@example.com", "amount": "10"})

	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp transferResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.StatusStranded, resp.Transfer.Status)
	assert.NotEmpty(t, resp.Warning)
	// A stranded transfer must never trigger success notifications.
	assert.Empty(t, ts.notifier.sent)
}

func TestCreateTransferFailed(t *testing.T) {
	ts := newTestServer()
	ts.seedUser("alice@example.com", models.BaseSepolia, models.Wallet{Handle: "h1", Network: models.BaseSepolia})
	ts.seedUser("bob@example.com", models.BaseSepolia, models.Wallet{Handle: "h2", Network: models.BaseSepolia})
	ts.settler.transfer = &models.Transfer{ID: "t-3", Status: models.StatusDepositFailed}
	ts.settler.err = errors.New("deposit leg failed: rejected")

	rec := ts.request(t, http.MethodPost, "/v1/transfers", "alice@example.com",
		map[string]string{"recipientEmail": "bob@example.com", "amount": "10"})

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCreateTransferValidationError(t *testing.T) {
	ts := newTestServer()
	ts.seedUser("alice@example.com", models.BaseSepolia)
	ts.seedUser("bob@example.com", models.BaseSepolia)
	_, ts.settler.err = validation.ValidateAmount("-1")

	rec := ts.request(t, http.MethodPost, "/v1/transfers", "alice@example.com",
		map[string]string{"recipientEmail": "bob@example.com", "amount": "-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateTransferSelfTransfer(t *testing.T) {
	ts := newTestServer()
	ts.seedUser("alice@example.com", models.BaseSepolia)
	ts.settler.err = engine.ErrSelfTransfer

	rec := ts.request(t, http.MethodPost, "/v1/transfers", "alice@example.com",
		map[string]string{"recipientEmail": "alice@example.com", "amount": "10"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateTransferInternalError(t *testing.T) {
	ts := newTestServer()
	ts.seedUser("alice@example.com", models.BaseSepolia)
	ts.seedUser("bob@example.com", models.BaseSepolia)
	ts.settler.err = errors.New("failed to create transfer record: connection refused")

	rec := ts.request(t, http.MethodPost, "/v1/transfers", "alice@example.com",
		map[string]string{"recipientEmail": "bob@example.com", "amount": "10"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// Internal detail must not leak to the caller.
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Internal error", resp["error"])
}

func TestCreateTransferUnknownRecipient(t *testing.T) {
	ts := newTestServer()
	ts.seedUser("alice@example.com", models.BaseSepolia)

	rec := ts.request(t, http.MethodPost, "/v1/transfers", "alice@example.com",
		map[string]string{"recipientEmail": "nobody@example.com", "amount": "10"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateTransferMissingFields(t *testing.T) {
	ts := newTestServer()
	ts.seedUser("alice@example.com", models.BaseSepolia)

	rec := ts.request(t, http.MethodPost, "/v1/transfers", "alice@example.com", map[string]string{"amount": "10"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateTransferUnauthorized(t *testing.T) {
	ts := newTestServer()
	rec := ts.request(t, http.MethodPost, "/v1/transfers", "",
		map[string]string{"recipientEmail": "bob@example.com", "amount": "10"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnifiedBalance(t *testing.T) {
	ts := newTestServer()
	ts.seedUser("alice@example.com", models.BaseSepolia,
		models.Wallet{Handle: "h-base", Network: models.BaseSepolia},
		models.Wallet{Handle: "h-arc", Network: models.ArcTestnet},
	)
	ts.balances.total = decimal.RequireFromString("50.5")
	ts.balances.breakdown = map[string]decimal.Decimal{
		"h-base": decimal.RequireFromString("40.5"),
		"h-arc":  decimal.RequireFromString("10"),
	}

	rec := ts.request(t, http.MethodGet, "/v1/balance", "alice@example.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Total     string            `json:"total"`
		Breakdown map[string]string `json:"breakdown"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "50.50", resp.Total)
	assert.Equal(t, "40.50", resp.Breakdown["Base Sepolia"])
	assert.Equal(t, "10.00", resp.Breakdown["Arc Testnet"])
}

func TestUnifiedBalanceNoWallets(t *testing.T) {
	ts := newTestServer()
	ts.seedUser("alice@example.com", models.BaseSepolia)

	rec := ts.request(t, http.MethodGet, "/v1/balance", "alice@example.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Total     string            `json:"total"`
		Breakdown map[string]string `json:"breakdown"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "0.00", resp.Total)
	assert.Empty(t, resp.Breakdown)
}

func TestListTransfersTyped(t *testing.T) {
	ts := newTestServer()
	alice := ts.seedUser("alice@example.com", models.BaseSepolia)
	ts.store.transfers = []models.Transfer{
		{ID: "t-1", SenderID: alice.ID, RecipientEmail: "bob@example.com"},
		{ID: "t-2", SenderID: "u-someone", RecipientEmail: "alice@example.com"},
	}

	rec := ts.request(t, http.MethodGet, "/v1/transfers", "alice@example.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Transfers []struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		} `json:"transfers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Transfers, 2)
	assert.Equal(t, "SENT", resp.Transfers[0].Type)
	assert.Equal(t, "RECEIVED", resp.Transfers[1].Type)
}

func TestCheckUser(t *testing.T) {
	ts := newTestServer()
	ts.seedUser("alice@example.com", models.BaseSepolia)
	ts.seedUser("bob@example.com", "")

	rec := ts.request(t, http.MethodPost, "/v1/users/check", "alice@example.com",
		map[string]string{"email": "bob@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["exists"])

	rec = ts.request(t, http.MethodPost, "/v1/users/check", "alice@example.com",
		map[string]string{"email": "nobody@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["exists"])
}

func TestSetupProvisionsWalletsAndSetsPreference(t *testing.T) {
	ts := newTestServer()
	ts.custody.provisioned = []models.ProvisionedWallet{
		{Handle: "h-base", Address: "0x1111111111111111111111111111111111111111", Network: models.BaseSepolia},
		{Handle: "h-arc", Address: "0x2222222222222222222222222222222222222222", Network: models.ArcTestnet},
	}

	rec := ts.request(t, http.MethodPost, "/v1/users/setup", "carol@example.com",
		map[string]string{"network": "ARC-TESTNET"})
	require.Equal(t, http.StatusOK, rec.Code)

	user := ts.store.users["carol@example.com"]
	require.NotNil(t, user)
	assert.Equal(t, models.ArcTestnet, user.PreferredNetwork)
	assert.True(t, user.OnboardingCompleted)
	assert.Len(t, ts.store.wallets[user.ID], 2)

	// Preference is immutable once onboarding completes.
	rec = ts.request(t, http.MethodPost, "/v1/users/setup", "carol@example.com",
		map[string]string{"network": "BASE-SEPOLIA"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSetupRejectsUnknownNetwork(t *testing.T) {
	ts := newTestServer()
	rec := ts.request(t, http.MethodPost, "/v1/users/setup", "carol@example.com",
		map[string]string{"network": "DOGE-MAINNET"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetupCustodyFailure(t *testing.T) {
	ts := newTestServer()
	ts.custody.err = errors.New("custody unavailable")

	rec := ts.request(t, http.MethodPost, "/v1/users/setup", "carol@example.com",
		map[string]string{"network": "BASE-SEPOLIA"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	// Preference must not be recorded when provisioning failed.
	user := ts.store.users["carol@example.com"]
	require.NotNil(t, user)
	assert.False(t, user.OnboardingCompleted)
}

func TestInvite(t *testing.T) {
	ts := newTestServer()
	rec := ts.request(t, http.MethodPost, "/v1/invites", "alice@example.com",
		map[string]string{"email": "newbie@example.com", "amount": "5"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, ts.notifier.sent, 1)
	assert.Equal(t, notification{"invite", "newbie@example.com"}, ts.notifier.sent[0])
}

func TestInviteInvalidAmount(t *testing.T) {
	ts := newTestServer()
	rec := ts.request(t, http.MethodPost, "/v1/invites", "alice@example.com",
		map[string]string{"email": "newbie@example.com", "amount": "-5"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, ts.notifier.sent)
}

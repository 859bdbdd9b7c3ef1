package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"sjsage522/dealbridge/internal/binder"
	"sjsage522/dealbridge/internal/cpq"
	"sjsage522/dealbridge/internal/deal"
	"sjsage522/dealbridge/internal/page"
	bridgeerrors "sjsage522/dealbridge/pkg/errors"
	"sjsage522/dealbridge/services/cache"
	"sjsage522/dealbridge/services/hubspot"
	"sjsage522/dealbridge/services/publisher"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBase = "https://your-cpq-website.com/hubspot-cpq-setup"

const dealPage = `
<html>
<body>
	<div class="deal-header">
		<h1 data-test-id="deal-name">Acme Renewal</h1>
		<span data-test-id="deal-amount">5000</span>
		<span data-test-id="deal-owner" data-owner-id="31">Jane</span>
	</div>
	<div class="deal-actions">
		<button data-test-id="cpq-tool-button" onclick="window.open('https://old.example.com')">Open CPQ</button>
	</div>
</body>
</html>
`

func newPage(t *testing.T, html, location string) *page.DocumentPage {
	t.Helper()
	p, err := page.NewDocumentPage(strings.NewReader(html), location)
	require.NoError(t, err)
	return p
}

func newBridge(p page.Page, opts Options) *Bridge {
	if opts.CPQBaseURL == "" {
		opts.CPQBaseURL = testBase
	}
	if opts.Binder.RecheckDelay == 0 {
		opts.Binder.RecheckDelay = 10 * time.Millisecond
	}
	return New(p, opts)
}

func TestCurrentDealData_Scenario(t *testing.T) {
	ctx := context.Background()
	p := newPage(t, "", "")
	p.SetHostObject([]byte(`{"deal":{"id":"42","properties":{"dealname":"Acme Renewal"}}}`))

	b := newBridge(p, Options{})
	rec, err := b.CurrentDealData(ctx)
	require.NoError(t, err)
	assert.Equal(t, deal.Record{DealID: "42", DealName: "Acme Renewal"}, rec)

	got, err := b.OpenCPQTool(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, "https://your-cpq-website.com/hubspot-cpq-setup?dealId=42&dealName=Acme+Renewal", got)
	assert.Equal(t, []string{got}, p.Opened())
}

func TestCurrentDealData_InvalidHostObjectIgnored(t *testing.T) {
	p := newPage(t, dealPage, "https://app.hubspot.com/contacts/1/record/0-3/77")
	p.SetHostObject([]byte(`{"deal":`))

	rec, err := newBridge(p, Options{}).CurrentDealData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "77", rec.DealID)
	assert.Equal(t, "Acme Renewal", rec.DealName)
	assert.Equal(t, "31", rec.OwnerID)
}

func TestTrigger_MissingDealID(t *testing.T) {
	p := newPage(t, dealPage, "https://app.hubspot.com/contacts/1")

	url, err := newBridge(p, Options{}).Trigger(context.Background())
	assert.Empty(t, url)
	require.Error(t, err)
	assert.True(t, bridgeerrors.IsType(err, bridgeerrors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "dealId")

	assert.Equal(t, []string{MissingDealMessage}, p.Alerts())
	assert.Empty(t, p.Opened())
}

func TestTrigger_OpensBuiltURL(t *testing.T) {
	p := newPage(t, dealPage, "https://app.hubspot.com/contacts/1?dealId=42")
	b := newBridge(p, Options{})

	rec, err := b.CurrentDealData(context.Background())
	require.NoError(t, err)
	expected, err := cpq.BuildURL(testBase, rec)
	require.NoError(t, err)

	got, err := b.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, expected, got)
	assert.Equal(t, []string{expected}, p.Opened())
	assert.Empty(t, p.Alerts())
}

func TestInit_RebindsExistingButton(t *testing.T) {
	ctx := context.Background()
	p := newPage(t, dealPage, "https://app.hubspot.com/contacts/1?dealId=42")
	b := newBridge(p, Options{})

	require.NoError(t, b.Init(ctx))

	markup, err := p.HTML()
	require.NoError(t, err)
	assert.NotContains(t, markup, "old.example.com")

	require.True(t, p.Click(ctx, `[data-test-id="cpq-tool-button"]`))
	require.Len(t, p.Opened(), 1)
	assert.Contains(t, p.Opened()[0], "dealId=42")
	assert.Contains(t, p.Opened()[0], "dealName=Acme+Renewal")
	assert.Contains(t, p.Opened()[0], "ownerId=31")
}

func TestInit_CreatesFallbackButton(t *testing.T) {
	ctx := context.Background()
	p := newPage(t, `<div class="deal-properties"><h1>Untitled</h1></div>`, "https://app.hubspot.com/contacts/1")
	b := newBridge(p, Options{Binder: binder.Config{Button: page.Button{Label: "Quote it"}}})

	require.NoError(t, b.Init(ctx))

	doc, err := p.Document(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Quote it", doc.Find(".deal-properties ["+page.TriggerMarker+"]").Text())

	// no deal id anywhere: the click alerts instead of opening
	require.True(t, p.Click(ctx, "["+page.TriggerMarker+"]"))
	assert.Equal(t, []string{MissingDealMessage}, p.Alerts())
	assert.Empty(t, p.Opened())
}

func TestInit_NoContainer(t *testing.T) {
	p := newPage(t, `<div class="sidebar"></div>`, "")
	b := newBridge(p, Options{})

	require.NoError(t, b.Init(context.Background()))

	ok, err := p.Exists(context.Background(), "button")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateAndCreateButton(t *testing.T) {
	ctx := context.Background()
	p := newPage(t, `<div class="deal-actions"></div>`, "")
	b := newBridge(p, Options{})

	updated, err := b.UpdateButton(ctx)
	require.NoError(t, err)
	assert.False(t, updated)

	created, err := b.CreateButton(ctx)
	require.NoError(t, err)
	assert.True(t, created)

	updated, err = b.UpdateButton(ctx)
	require.NoError(t, err)
	assert.True(t, updated)
}

// fakeFetcher implements DealFetcher
type fakeFetcher struct {
	deal  *hubspot.Deal
	err   error
	calls []string
}

func (f *fakeFetcher) GetDeal(ctx context.Context, dealID string) (*hubspot.Deal, error) {
	f.calls = append(f.calls, dealID)
	return f.deal, f.err
}

func strPtr(s string) *string { return &s }

func TestCurrentDealData_HubSpotEnrichment(t *testing.T) {
	p := newPage(t, dealPage, "https://app.hubspot.com/contacts/1/record/0-3/42")
	fetcher := &fakeFetcher{deal: &hubspot.Deal{
		ID: "42",
		Properties: map[string]*string{
			"dealname":  strPtr("API Name"),
			"dealstage": strPtr("contractsent"),
			"company":   strPtr("Acme Corp"),
		},
	}}

	rec, err := newBridge(p, Options{HubSpot: fetcher}).CurrentDealData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"42"}, fetcher.calls)
	// page values are kept; API values fill the gaps
	assert.Equal(t, "Acme Renewal", rec.DealName)
	assert.Equal(t, "contractsent", rec.Stage)
	assert.Equal(t, "Acme Corp", rec.Company)
}

func TestCurrentDealData_HubSpotFailureIgnored(t *testing.T) {
	p := newPage(t, dealPage, "https://app.hubspot.com/contacts/1?dealId=42")
	fetcher := &fakeFetcher{err: errors.New("timeout")}

	rec, err := newBridge(p, Options{HubSpot: fetcher}).CurrentDealData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "42", rec.DealID)
	assert.Equal(t, "", rec.Stage)
}

func TestCurrentDealData_HubSpotNeedsDealID(t *testing.T) {
	p := newPage(t, dealPage, "")
	fetcher := &fakeFetcher{}

	_, err := newBridge(p, Options{HubSpot: fetcher}).CurrentDealData(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fetcher.calls)
}

// memoryCache implements cache.CacheService
type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memoryCache) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, errors.New("cache miss")
}

func (m *memoryCache) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryCache) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func TestOpenCPQTool_LaunchGuard(t *testing.T) {
	ctx := context.Background()
	p := newPage(t, "", "")
	guard := cache.NewLaunchGuard(&memoryCache{data: map[string][]byte{}}, time.Minute)
	b := newBridge(p, Options{LaunchGuard: guard})

	rec := deal.Record{DealID: "42", DealName: "Acme"}
	first, err := b.OpenCPQTool(ctx, rec)
	require.NoError(t, err)
	second, err := b.OpenCPQTool(ctx, rec)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{first}, p.Opened())
}

// recordingPublisher implements publisher.Publisher
type recordingPublisher struct {
	keys     []string
	messages [][]byte
	err      error
}

var _ publisher.Publisher = (*recordingPublisher)(nil)

func (r *recordingPublisher) Publish(key string, message []byte) error {
	r.keys = append(r.keys, key)
	r.messages = append(r.messages, message)
	return r.err
}

func (r *recordingPublisher) TrimStreams() error { return nil }
func (r *recordingPublisher) Close() error       { return nil }

func TestOpenCPQTool_PublishesLaunch(t *testing.T) {
	p := newPage(t, "", "")
	pub := &recordingPublisher{}
	b := newBridge(p, Options{Publisher: pub})

	url, err := b.OpenCPQTool(context.Background(), deal.Record{DealID: "42", DealName: "Acme"})
	require.NoError(t, err)

	require.Len(t, pub.messages, 1)
	assert.Equal(t, LaunchEventKey, pub.keys[0])

	var event map[string]string
	require.NoError(t, json.Unmarshal(pub.messages[0], &event))
	assert.Equal(t, "42", event["dealId"])
	assert.Equal(t, "Acme", event["dealName"])
	assert.Equal(t, "", event["company"])
	assert.Equal(t, url, event["url"])

	// publish failures do not affect the launch
	pub.err = errors.New("redis down")
	_, err = b.OpenCPQTool(context.Background(), deal.Record{DealID: "43", DealName: "Other"})
	assert.NoError(t, err)
	assert.Len(t, p.Opened(), 2)
}

func TestOpenCPQTool_InvalidBase(t *testing.T) {
	p := newPage(t, "", "")
	b := newBridge(p, Options{CPQBaseURL: "http://[::1"})

	_, err := b.OpenCPQTool(context.Background(), deal.Record{DealID: "1", DealName: "x"})
	assert.True(t, bridgeerrors.IsType(err, bridgeerrors.ErrorTypeConfiguration))
	assert.Empty(t, p.Opened())
}

// brokenPage fails every read
type brokenPage struct {
	page.Page
}

func (brokenPage) HostObject(context.Context) ([]byte, error) {
	return nil, bridgeerrors.NewBrowser("page", "tab closed", nil)
}

func TestTrigger_PageFailure(t *testing.T) {
	_, err := newBridge(brokenPage{}, Options{}).Trigger(context.Background())
	assert.True(t, bridgeerrors.IsType(err, bridgeerrors.ErrorTypeBrowser))
}

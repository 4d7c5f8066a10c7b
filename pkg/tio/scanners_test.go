package tio

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	Method string
	Path   string
	Body   map[string]interface{}
}

// fakeTIO answers from a fixed route table and records every request.
func fakeTIO(t *testing.T, routes map[string]string) (*Client, *[]call) {
	t.Helper()

	calls := &[]call{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "accessKey=ak; secretKey=sk", r.Header.Get("X-ApiKeys"))

		c := call{Method: r.Method, Path: r.URL.Path}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&c.Body)
		}
		*calls = append(*calls, c)

		body, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Scanner not found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)

	return NewClient(ts.URL+"/", "ak", "sk"), calls
}

const scannersBody = `{"scanners":[
	{"id":1,"uuid":"00000000-0000-0000-0000-00000000000000000000000000001","name":"US Cloud Scanner","type":"managed","status":"on","engine_version":"10.4.1","key":"cloud-linking-key","linked":1},
	{"id":7,"uuid":"a1","name":"branch-office","type":"local","status":"off","engine_version":"8.15.0","key":"k7","linked":0},
	{"id":9,"uuid":"a2","name":"lab","type":"local","status":"on","engine_version":"unknown","linked":1}
]}`

func TestScannersList(t *testing.T) {
	client, _ := fakeTIO(t, map[string]string{"GET /scanners": scannersBody})

	scanners, err := client.Scanners().List(context.Background())
	require.NoError(t, err)
	require.Len(t, scanners, 3)

	assert.Equal(t, 7, scanners[1].ID)
	assert.Equal(t, "branch-office", scanners[1].Name)
	assert.Equal(t, "8.15.0", scanners[1].EngineVersion)
	assert.True(t, scanners[0].Linked)
	assert.False(t, scanners[1].Linked)
}

func TestScannersLinkingKey(t *testing.T) {
	client, _ := fakeTIO(t, map[string]string{"GET /scanners": scannersBody})

	key, err := client.Scanners().LinkingKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cloud-linking-key", key)
}

func TestScannersOutdated(t *testing.T) {
	client, _ := fakeTIO(t, map[string]string{"GET /scanners": scannersBody})

	outdated, err := client.Scanners().Outdated(context.Background(), "10.0.0")
	require.NoError(t, err)
	require.Len(t, outdated, 1)
	assert.Equal(t, "branch-office", outdated[0].Name)

	_, err = client.Scanners().Outdated(context.Background(), "not-a-version")
	var unexpected *UnexpectedValueError
	assert.True(t, errors.As(err, &unexpected))
}

func TestScannersDetailsAndKey(t *testing.T) {
	client, _ := fakeTIO(t, map[string]string{
		"GET /scanners/7":     `{"id":7,"uuid":"a1","name":"branch-office","status":"off"}`,
		"GET /scanners/7/key": `{"key":"abcdef"}`,
	})

	sc, err := client.Scanners().Details(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "branch-office", sc.Name)
	assert.Equal(t, "off", sc.Status)

	key, err := client.Scanners().Key(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", key)
}

func TestScannersResources(t *testing.T) {
	client, _ := fakeTIO(t, map[string]string{
		"GET /scanners/7/scans":       `{"scans":[{"id":"s1","name":"weekly","status":"running"}]}`,
		"GET /scanners/7/aws-targets": `{"targets":[{"instance_id":"i-123","private_ip":"10.0.0.4"}]}`,
	})

	scans, err := client.Scanners().Scans(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, "weekly", scans[0]["name"])

	targets, err := client.Scanners().AWSTargets(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "i-123", targets[0]["instance_id"])
}

func TestScannersWrites(t *testing.T) {
	client, calls := fakeTIO(t, map[string]string{
		"PUT /settings/7":                   `{}`,
		"PUT /scanners/7/link":              `{}`,
		"DELETE /scanners/7":                `{}`,
		"POST /scanners/7/scans/s1/control": `{}`,
	})
	ctx := context.Background()
	api := client.Scanners()

	require.NoError(t, api.Edit(ctx, 7, ScannerSettings{ForcePluginUpdate: true, AWSUpdateInterval: 30}))
	require.NoError(t, api.ToggleLinkState(ctx, 7, false))
	require.NoError(t, api.Delete(ctx, 7))
	require.NoError(t, api.ControlScan(ctx, 7, "s1", "pause"))

	require.Len(t, *calls, 4)
	assert.Equal(t, map[string]interface{}{"force_plugin_update": 1.0, "aws_update_interval": 30.0}, (*calls)[0].Body)
	assert.Equal(t, map[string]interface{}{"link": 0.0}, (*calls)[1].Body)
	assert.Equal(t, "DELETE", (*calls)[2].Method)
	assert.Equal(t, map[string]interface{}{"action": "pause"}, (*calls)[3].Body)
}

func TestScannersValidation(t *testing.T) {
	client, calls := fakeTIO(t, nil)
	ctx := context.Background()
	api := client.Scanners()

	tests := []struct {
		name string
		call func() error
	}{
		{name: "badAction", call: func() error { return api.ControlScan(ctx, 1, "s1", "restart") }},
		{name: "emptyUUID", call: func() error { return api.ControlScan(ctx, 1, " ", "stop") }},
		{name: "negativeInterval", call: func() error { return api.Edit(ctx, 1, ScannerSettings{AWSUpdateInterval: -1}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var unexpected *UnexpectedValueError
			assert.True(t, errors.As(tt.call(), &unexpected))
		})
	}

	assert.Empty(t, *calls)
}

func TestScannersNotFound(t *testing.T) {
	client, _ := fakeTIO(t, nil)

	_, err := client.Scanners().Details(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "Scanner not found")
}

func TestScannerIDsPassedThrough(t *testing.T) {
	client, calls := fakeTIO(t, nil)

	_, err := client.Scanners().Details(context.Background(), 0)
	assert.True(t, IsNotFound(err))

	err = client.Scanners().Delete(context.Background(), -3)
	assert.True(t, IsNotFound(err))

	require.Len(t, *calls, 2)
	assert.Equal(t, "/scanners/0", (*calls)[0].Path)
	assert.Equal(t, "/scanners/-3", (*calls)[1].Path)
}

func TestAllowedScanners(t *testing.T) {
	client, _ := fakeTIO(t, map[string]string{
		"GET /editor/policy/templates": `{"templates":[
			{"name":"basic","uuid":"u-basic"},
			{"name":"advanced","uuid":"u-adv"},
			{"name":"was_scan","uuid":"u-was"}]}`,
		"GET /editor/scan/templates/u-adv": `{"settings":{"basic":{"inputs":[
			{"id":"name"},
			{"id":"scanner_id","options":[{"id":"1","name":"US Cloud Scanner"},{"id":"7","name":"branch-office"}]}]}}}`,
		"GET /editor/scan/templates/u-was": `{"settings":{"basic":{"inputs":[
			{"id":"scanner_id","options":[{"id":"3","name":"WAS Cloud Scanner"}]}]}}}`,
	})

	allowed, err := client.Scanners().AllowedScanners(context.Background())
	require.NoError(t, err)
	require.Len(t, allowed, 3)
	assert.Equal(t, "branch-office", allowed[1]["name"])
	assert.Equal(t, "WAS Cloud Scanner", allowed[2]["name"])
}

package tio

import (
	"context"
	"fmt"

	version2 "github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// linkingUUID identifies the cloud scanner holding the linking key.
const linkingUUID = "00000000-0000-0000-0000-00000000000000000000000000001"

var scanActions = []string{"stop", "pause", "resume"}

type ScannersAPI struct {
	api *Client
}

type Scanner struct {
	ID            int    `json:"id"`
	UUID          string `json:"uuid"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	Platform      string `json:"platform"`
	EngineVersion string `json:"engine_version"`
	PluginSet     string `json:"loaded_plugin_set"`
	Key           string `json:"key"`
	Owner         string `json:"owner"`
	Linked        bool   `json:"linked"`
	ScanCount     int    `json:"scan_count"`
}

// Resource is an untyped record returned by the API, e.g. a scan or an
// AWS target.
type Resource map[string]interface{}

// ScannerSettings are the optional fields of a scanner edit. Only the set
// fields are sent.
type ScannerSettings struct {
	ForcePluginUpdate bool
	ForceUIUpdate     bool
	FinishUpdate      bool
	RegistrationCode  string
	AWSUpdateInterval int
}

func parseScanner(r gjson.Result) Scanner {
	return Scanner{
		ID:            int(r.Get("id").Int()),
		UUID:          r.Get("uuid").String(),
		Name:          r.Get("name").String(),
		Type:          r.Get("type").String(),
		Status:        r.Get("status").String(),
		Platform:      r.Get("platform").String(),
		EngineVersion: r.Get("engine_version").String(),
		PluginSet:     r.Get("loaded_plugin_set").String(),
		Key:           r.Get("key").String(),
		Owner:         r.Get("owner").String(),
		Linked:        r.Get("linked").Bool(),
		ScanCount:     int(r.Get("scan_count").Int()),
	}
}

func parseResources(r gjson.Result) []Resource {
	out := []Resource{}
	for _, item := range r.Array() {
		if m, ok := item.Value().(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

// List returns every scanner of the container.
func (s *ScannersAPI) List(ctx context.Context) ([]Scanner, error) {
	res, err := s.api.get(ctx, "scanners")
	if err != nil {
		return nil, err
	}

	scanners := []Scanner{}
	for _, r := range res.Get("scanners").Array() {
		scanners = append(scanners, parseScanner(r))
	}
	return scanners, nil
}

func (s *ScannersAPI) Details(ctx context.Context, id int) (Scanner, error) {
	res, err := s.api.get(ctx, fmt.Sprintf("scanners/%d", id))
	if err != nil {
		return Scanner{}, err
	}
	return parseScanner(res), nil
}

func (s *ScannersAPI) Delete(ctx context.Context, id int) error {
	return s.api.delete(ctx, fmt.Sprintf("scanners/%d", id))
}

// Edit requests updates of a scanner's settings.
func (s *ScannersAPI) Edit(ctx context.Context, id int, settings ScannerSettings) error {
	payload := map[string]interface{}{}
	if settings.ForcePluginUpdate {
		payload["force_plugin_update"] = 1
	}
	if settings.ForceUIUpdate {
		payload["force_ui_update"] = 1
	}
	if settings.FinishUpdate {
		payload["finish_update"] = 1
	}
	if settings.RegistrationCode != "" {
		payload["registration_code"] = settings.RegistrationCode
	}
	if settings.AWSUpdateInterval != 0 {
		if settings.AWSUpdateInterval < 0 {
			return &UnexpectedValueError{Name: "aws_update_interval", Value: settings.AWSUpdateInterval}
		}
		payload["aws_update_interval"] = settings.AWSUpdateInterval
	}

	return s.api.put(ctx, fmt.Sprintf("settings/%d", id), payload)
}

func (s *ScannersAPI) AWSTargets(ctx context.Context, id int) ([]Resource, error) {
	res, err := s.api.get(ctx, fmt.Sprintf("scanners/%d/aws-targets", id))
	if err != nil {
		return nil, err
	}
	return parseResources(res.Get("targets")), nil
}

// Key returns the scanner's key.
func (s *ScannersAPI) Key(ctx context.Context, id int) (string, error) {
	res, err := s.api.get(ctx, fmt.Sprintf("scanners/%d/key", id))
	if err != nil {
		return "", err
	}
	return res.Get("key").String(), nil
}

// Scans returns the scans running on the scanner.
func (s *ScannersAPI) Scans(ctx context.Context, id int) ([]Resource, error) {
	res, err := s.api.get(ctx, fmt.Sprintf("scanners/%d/scans", id))
	if err != nil {
		return nil, err
	}
	return parseResources(res.Get("scans")), nil
}

// ControlScan stops, pauses or resumes a scan on the scanner.
func (s *ScannersAPI) ControlScan(ctx context.Context, scannerID int, scanUUID, action string) error {
	if err := checkString("scan_uuid", scanUUID); err != nil {
		return err
	}
	if err := checkChoice("action", action, scanActions...); err != nil {
		return err
	}

	return s.api.post(ctx, fmt.Sprintf("scanners/%d/scans/%s/control", scannerID, scanUUID),
		map[string]string{"action": action})
}

// ToggleLinkState links or unlinks the scanner.
func (s *ScannersAPI) ToggleLinkState(ctx context.Context, id int, linked bool) error {
	link := 0
	if linked {
		link = 1
	}
	return s.api.put(ctx, fmt.Sprintf("scanners/%d/link", id), map[string]int{"link": link})
}

// LinkingKey returns the key used to link new scanners to the container.
// It is empty if no scanner carries it.
func (s *ScannersAPI) LinkingKey(ctx context.Context) (string, error) {
	scanners, err := s.List(ctx)
	if err != nil {
		return "", err
	}

	for _, sc := range scanners {
		if sc.UUID == linkingUUID {
			return sc.Key, nil
		}
	}
	return "", nil
}

// AllowedScanners returns the scanner options the current user may pick,
// read from the advanced network and web application scan templates.
func (s *ScannersAPI) AllowedScanners(ctx context.Context) ([]Resource, error) {
	templates, err := s.api.get(ctx, "editor/policy/templates")
	if err != nil {
		return nil, err
	}

	allowed := []Resource{}
	for _, name := range []string{"advanced", "was_scan"} {
		uuid := templates.Get(fmt.Sprintf(`templates.#(name==%q).uuid`, name)).String()
		if uuid == "" {
			log.Debugf("scan template %s is not available", name)
			continue
		}

		details, err := s.api.get(ctx, fmt.Sprintf("editor/scan/templates/%s", uuid))
		if err != nil {
			return nil, err
		}

		options := details.Get(`settings.basic.inputs.#(id=="scanner_id").options`)
		allowed = append(allowed, parseResources(options)...)
	}

	return allowed, nil
}

// Outdated returns the scanners whose engine is older than minVersion.
// Scanners reporting no parsable engine version are skipped.
func (s *ScannersAPI) Outdated(ctx context.Context, minVersion string) ([]Scanner, error) {
	least, err := version2.NewVersion(minVersion)
	if err != nil {
		return nil, &UnexpectedValueError{Name: "min_version", Value: minVersion}
	}

	scanners, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	outdated := []Scanner{}
	for _, sc := range scanners {
		v, err := version2.NewVersion(sc.EngineVersion)
		if err != nil {
			log.WithField("scanner", sc.Name).Debugf("unparsable engine version %q", sc.EngineVersion)
			continue
		}

		if v.LessThan(least) {
			outdated = append(outdated, sc)
		}
	}

	return outdated, nil
}

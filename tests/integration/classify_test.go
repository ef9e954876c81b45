//go:build integration
// +build integration

// Package integration provides end-to-end tests for the Clarity coverage
// determination engine.
//
// These tests verify the COMPLETE classification pipeline:
//
//	Profile → Safety Stop → Carrier Rules → Verdict (+ Pricing)
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// UNDERSTANDING THE DOMAIN:
//
// 1. PROFILE: A patient's clinical and insurance snapshot (carrier, state,
//    plan source, BMI, age, comorbidities, medication history).
//
// 2. POLICY: Per-carrier rule sets loaded from the active policy document.
//    Each rule matches profile conditions and yields a verdict tier.
//
// 3. VERDICT TIERS:
//   - approve-likely  → coverage criteria appear to be met
//   - restricted      → covered with conditions (step therapy, overrides)
//   - denied          → plan excludes the medication class
//   - borderline      → not enough signal either way
//
// 4. SAFETY STOP: BMI below the configured floor halts classification
//    entirely and surfaces an informational modal instead of a verdict.
//
// These tests run against the EMBEDDED default policy. A server started
// with a custom CLARITY_POLICY file may produce different verdicts.
package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("CLARITY_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{BaseURL: baseURL}
}

// ============================================================================
// API Request/Response Types (matching Clarity's API contract)
// ============================================================================

// ClassifyRequest is the profile sent to POST /classify
type ClassifyRequest struct {
	Profile Profile `json:"profile"`
	Email   string  `json:"email,omitempty"`
}

type Profile struct {
	Carrier                    string   `json:"carrier"`
	State                      string   `json:"state"`
	PlanSource                 string   `json:"planSource"`
	BMI                        float64  `json:"bmi"`
	Age                        int      `json:"age"`
	Comorbidities              []string `json:"comorbidities,omitempty"`
	MedicationHistory          []string `json:"medicationHistory,omitempty"`
	Medication                 string   `json:"medication"`
	LifestyleProgramEnrollment bool     `json:"lifestyleProgramEnrollment"`
}

// ClassifyResponse is what POST /classify returns
type ClassifyResponse struct {
	SubmissionID string           `json:"submissionId,omitempty"`
	Status       string           `json:"status"`
	Reason       string           `json:"reason"`
	Pricing      *Pricing         `json:"pricing,omitempty"`
	PricingNote  string           `json:"pricingNote,omitempty"`
	Metadata     ResponseMetadata `json:"metadata"`
}

type Pricing struct {
	Model         string `json:"model"`
	EstCopayRange string `json:"estCopayRange,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

type ResponseMetadata struct {
	TraceID string `json:"traceId"`
	TotalMs int64  `json:"totalMs"`
	Version string `json:"version"`
}

// SafetyCheckResponse is what POST /safety-check returns
type SafetyCheckResponse struct {
	Safe    bool   `json:"safe"`
	ModalID string `json:"modalId,omitempty"`
}

// ============================================================================
// Test Helper Functions
// ============================================================================

func classify(t *testing.T, config TestConfig, req ClassifyRequest) ClassifyResponse {
	t.Helper()

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	httpReq, err := http.NewRequest("POST", config.BaseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(respBody))
	}

	var result ClassifyResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(respBody))
	}

	return result
}

// ============================================================================
// SCENARIO 1: Qualifying Commercial Profile (Approve-Likely)
// ============================================================================

func TestQualifyingProfile_ApproveLikely(t *testing.T) {
	/*
	   SCENARIO: A BCBS member in Texas, BMI 32, with prior metformin use

	   EXPECTED BEHAVIOR:
	   - Safety stop passes (BMI well above the floor)
	   - BCBS rule "bmi_ge 30 + medication history" matches
	   - Verdict: approve-likely, with copay pricing attached
	*/
	config := getTestConfig()

	req := ClassifyRequest{
		Profile: Profile{
			Carrier:           "BCBS",
			State:             "TX",
			PlanSource:        "employer",
			BMI:               32.0,
			Age:               45,
			Comorbidities:     []string{"hypertension"},
			MedicationHistory: []string{"metformin"},
			Medication:        "Wegovy",
		},
	}

	result := classify(t, config, req)

	if result.Status != "approve-likely" {
		t.Errorf("Expected approve-likely, got %s (reason: %s)", result.Status, result.Reason)
	}

	if result.Pricing == nil {
		t.Error("Expected pricing details on an approve-likely verdict")
	} else if result.Pricing.Model != "copay" {
		t.Errorf("Expected copay pricing model, got %s", result.Pricing.Model)
	}

	t.Logf("✓ Qualifying profile: status=%s, reason=%s", result.Status, result.Reason)
}

// ============================================================================
// SCENARIO 2: Medication Override (Restricted)
// ============================================================================

func TestMedicationOverride_Restricted(t *testing.T) {
	/*
	   SCENARIO: Same qualifying BCBS profile, but requesting Saxenda

	   EXPECTED BEHAVIOR:
	   - Medication-specific override takes precedence over the base rule
	   - Verdict: restricted (step therapy / formulary restriction)

	   WHY THIS MATTERS:
	   Carriers commonly cover the drug class while restricting individual
	   brands. The override must win even when the base criteria are met.
	*/
	config := getTestConfig()

	req := ClassifyRequest{
		Profile: Profile{
			Carrier:           "BCBS",
			State:             "TX",
			PlanSource:        "employer",
			BMI:               32.0,
			Age:               45,
			MedicationHistory: []string{"metformin"},
			Medication:        "Saxenda",
		},
	}

	result := classify(t, config, req)

	if result.Status != "restricted" {
		t.Errorf("Expected restricted for Saxenda override, got %s", result.Status)
	}

	t.Logf("✓ Medication override: status=%s, reason=%s", result.Status, result.Reason)
}

// ============================================================================
// SCENARIO 3: Safety Stop Boundary
// ============================================================================

func TestSafetyStop_Boundary(t *testing.T) {
	/*
	   SCENARIO: BMI exactly at and just below the configured floor (27.0)

	   EXPECTED BEHAVIOR:
	   - BMI 27.0 is safe (floor is inclusive)
	   - BMI 26.9 is unsafe and returns the safety modal ID

	   WHY THIS TEST:
	   Boundary conditions catch off-by-one errors in threshold logic.
	*/
	config := getTestConfig()
	client := &http.Client{Timeout: 10 * time.Second}

	cases := []struct {
		name     string
		bmi      float64
		wantSafe bool
	}{
		{"AtFloor", 27.0, true},
		{"BelowFloor", 26.9, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, _ := json.Marshal(map[string]float64{"bmi": tc.bmi})
			resp, err := client.Post(config.BaseURL+"/safety-check", "application/json", bytes.NewReader(body))
			if err != nil {
				t.Fatalf("Request failed: %v", err)
			}
			defer resp.Body.Close()

			var result SafetyCheckResponse
			if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}

			if result.Safe != tc.wantSafe {
				t.Errorf("BMI %.1f: expected safe=%v, got %v", tc.bmi, tc.wantSafe, result.Safe)
			}
			if !tc.wantSafe && result.ModalID == "" {
				t.Error("Expected a modal ID on an unsafe result")
			}

			t.Logf("✓ BMI %.1f → safe=%v", tc.bmi, result.Safe)
		})
	}
}

// ============================================================================
// SCENARIO 4: Lead Creation and Retrieval
// ============================================================================

func TestClassifyWithEmail_CreatesSubmission(t *testing.T) {
	/*
	   SCENARIO: A classify request that includes a contact email

	   EXPECTED BEHAVIOR:
	   - The verdict is persisted as a submission with a generated ID
	   - GET /submissions/{id} returns the stored submission
	   - The export worker eventually writes a lead file (not asserted here;
	     file placement depends on server configuration)
	*/
	config := getTestConfig()

	req := ClassifyRequest{
		Profile: Profile{
			Carrier:           "BCBS",
			State:             "TX",
			PlanSource:        "employer",
			BMI:               31.0,
			Age:               38,
			MedicationHistory: []string{"metformin"},
			Medication:        "Zepbound",
		},
		Email: "integration-test@example.com",
	}

	result := classify(t, config, req)

	if result.SubmissionID == "" {
		t.Fatal("Expected a submission ID when email is provided")
	}

	// Round-trip through the retrieval endpoint
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(config.BaseURL + "/submissions/" + result.SubmissionID)
	if err != nil {
		t.Fatalf("Retrieval request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 retrieving submission, got %d", resp.StatusCode)
	}

	var stored struct {
		ID      string `json:"id"`
		Verdict struct {
			Status string `json:"status"`
		} `json:"verdict"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		t.Fatalf("Failed to decode stored submission: %v", err)
	}

	if stored.ID != result.SubmissionID {
		t.Errorf("Stored ID mismatch: got %s, want %s", stored.ID, result.SubmissionID)
	}
	if stored.Verdict.Status != result.Status {
		t.Errorf("Stored verdict mismatch: got %s, want %s", stored.Verdict.Status, result.Status)
	}

	t.Logf("✓ Submission persisted: id=%s, status=%s", stored.ID, stored.Verdict.Status)
}

// ============================================================================
// SCENARIO 5: Anonymous Classification (No Persistence)
// ============================================================================

func TestClassifyWithoutEmail_NoSubmission(t *testing.T) {
	/*
	   SCENARIO: A classify request with no contact email

	   EXPECTED BEHAVIOR:
	   - A verdict is returned
	   - No submission is created (no lead without contact info)
	*/
	config := getTestConfig()

	req := ClassifyRequest{
		Profile: Profile{
			Carrier:    "Aetna",
			State:      "CA",
			PlanSource: "employer",
			BMI:        29.0,
			Age:        50,
			Medication: "Wegovy",
		},
	}

	result := classify(t, config, req)

	if result.SubmissionID != "" {
		t.Errorf("Expected no submission ID without email, got %s", result.SubmissionID)
	}

	if result.Status == "" {
		t.Error("Expected a verdict status")
	}

	t.Logf("✓ Anonymous classification: status=%s", result.Status)
}

// ============================================================================
// SCENARIO 6: Input Validation
// ============================================================================

func TestMissingCarrier_Error(t *testing.T) {
	/*
	   SCENARIO: Request missing the required carrier field

	   EXPECTED: HTTP 400 Bad Request
	*/
	config := getTestConfig()

	req := ClassifyRequest{
		Profile: Profile{
			Carrier:    "", // Missing!
			State:      "TX",
			PlanSource: "employer",
			BMI:        31.0,
			Medication: "Wegovy",
		},
	}

	body, _ := json.Marshal(req)
	httpReq, _ := http.NewRequest("POST", config.BaseURL+"/classify", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing carrier, got %d", resp.StatusCode)
	}

	t.Logf("✓ Validation test passed: missing carrier → HTTP %d", resp.StatusCode)
}

func TestZeroBMI_Error(t *testing.T) {
	/*
	   SCENARIO: Request with a zero BMI

	   EXPECTED: HTTP 400 Bad Request (BMI must be positive)
	*/
	config := getTestConfig()

	req := ClassifyRequest{
		Profile: Profile{
			Carrier:    "BCBS",
			State:      "TX",
			PlanSource: "employer",
			BMI:        0, // Invalid!
			Medication: "Wegovy",
		},
	}

	body, _ := json.Marshal(req)
	httpReq, _ := http.NewRequest("POST", config.BaseURL+"/classify", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for zero BMI, got %d", resp.StatusCode)
	}

	t.Logf("✓ Validation test passed: zero BMI → HTTP %d", resp.StatusCode)
}

// ============================================================================
// SCENARIO 7: Policy Hot-Reload
// ============================================================================

func TestPolicyReload_Embedded(t *testing.T) {
	/*
	   SCENARIO: Reload the embedded policy while the server is running

	   EXPECTED BEHAVIOR:
	   - POST /policy/reload with source "embedded" returns 200
	   - GET /policy still serves a populated document afterwards
	   - In-flight classification continues to work
	*/
	config := getTestConfig()
	client := &http.Client{Timeout: 10 * time.Second}

	body, _ := json.Marshal(map[string]string{"source": "embedded"})
	resp, err := client.Post(config.BaseURL+"/policy/reload", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Reload request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected 200 reloading policy, got %d: %s", resp.StatusCode, raw)
	}

	// Policy endpoint still serves a document
	polResp, err := client.Get(config.BaseURL + "/policy")
	if err != nil {
		t.Fatalf("Policy fetch failed: %v", err)
	}
	defer polResp.Body.Close()

	if polResp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 fetching policy after reload, got %d", polResp.StatusCode)
	}

	// Classification still works after the swap
	result := classify(t, getTestConfig(), ClassifyRequest{
		Profile: Profile{
			Carrier:           "BCBS",
			State:             "TX",
			PlanSource:        "employer",
			BMI:               32.0,
			Age:               45,
			MedicationHistory: []string{"metformin"},
			Medication:        "Wegovy",
		},
	})

	if result.Status != "approve-likely" {
		t.Errorf("Expected approve-likely after reload, got %s", result.Status)
	}

	t.Logf("✓ Policy reload: classification unchanged, status=%s", result.Status)
}

// ============================================================================
// SCENARIO 8: Response Metadata Verification
// ============================================================================

func TestResponseMetadata(t *testing.T) {
	/*
	   SCENARIO: Verify response includes all required metadata

	   This ensures the API contract is stable for clients.
	*/
	config := getTestConfig()

	req := ClassifyRequest{
		Profile: Profile{
			Carrier:    "Cigna",
			State:      "WA",
			PlanSource: "employer",
			BMI:        30.5,
			Age:        41,
			Medication: "Wegovy",
		},
	}

	result := classify(t, config, req)

	if result.Status == "" {
		t.Error("Missing status")
	}

	if result.Reason == "" {
		t.Error("Missing reason")
	}

	if result.Metadata.TraceID == "" {
		t.Error("Missing metadata.traceId")
	}

	// Note: TotalMs can be 0 for very fast operations (sub-millisecond)
	if result.Metadata.TotalMs < 0 {
		t.Error("Invalid metadata.totalMs (negative)")
	}

	if result.Metadata.Version == "" {
		t.Error("Missing metadata.version")
	}

	t.Logf("✓ Metadata complete: traceId=%s, totalMs=%d, version=%s",
		result.Metadata.TraceID, result.Metadata.TotalMs, result.Metadata.Version)
}

package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType names what happened.
type AuditEventType string

const (
	// Admin gate
	AuditAdminUnlock  AuditEventType = "admin_unlock"
	AuditAdminReject  AuditEventType = "admin_reject"
	AuditAdminLock    AuditEventType = "admin_lock"
	AuditPasscodeSet  AuditEventType = "passcode_set"
	AuditSettingsSave AuditEventType = "settings_save"

	// Articles
	AuditArticleCreate AuditEventType = "article_create"
	AuditArticleUpdate AuditEventType = "article_update"
	AuditArticleDelete AuditEventType = "article_delete"

	// Inference
	AuditProviderSelect AuditEventType = "provider_select"
	AuditGeoRequest     AuditEventType = "geo_request"
	AuditGeoComplete    AuditEventType = "geo_complete"
	AuditGeoError       AuditEventType = "geo_error"
)

// AuditEvent is one line of the audit log.
type AuditEvent struct {
	Timestamp  int64                  `json:"ts"`               // Unix milliseconds
	EventType  AuditEventType         `json:"event"`            // What happened
	Category   string                 `json:"cat"`              // Log category
	RequestID  string                 `json:"req,omitempty"`    // Request correlation
	Target     string                 `json:"target,omitempty"` // Subject of the event
	Success    bool                   `json:"success"`          // Operation succeeded
	DurationMs int64                  `json:"dur_ms,omitempty"` // Duration in milliseconds
	Error      string                 `json:"error,omitempty"`  // Error message if failed
	Message    string                 `json:"msg"`              // Human-readable message
	Fields     map[string]interface{} `json:"fields,omitempty"` // Additional structured fields
}

// =============================================================================
// AUDIT LOGGER
// =============================================================================

var (
	auditFile *os.File
	auditMu   sync.Mutex
)

// AuditLogger writes audit events for one category.
type AuditLogger struct {
	category  Category
	requestID string
}

// InitAudit opens the audit log in dir. It is a no-op outside debug mode.
func InitAudit(dir string) error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil // Already initialized
	}

	date := time.Now().Format("2006-01-02")
	auditPath := filepath.Join(dir, fmt.Sprintf("%s_audit.log", date))

	file, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file
	return nil
}

// CloseAudit closes the audit log file
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit returns an audit logger for category.
func Audit(category Category) *AuditLogger {
	return &AuditLogger{category: category}
}

// AuditWithRequest scopes an audit logger to one request.
func AuditWithRequest(category Category, requestID string) *AuditLogger {
	return &AuditLogger{category: category, requestID: requestID}
}

// Log writes an audit event as one JSON line.
func (a *AuditLogger) Log(event AuditEvent) {
	if !IsDebugMode() {
		return
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.RequestID == "" {
		event.RequestID = a.requestID
	}
	if event.Category == "" {
		event.Category = string(a.category)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile == nil {
		return
	}
	auditFile.Write(append(data, '\n'))
}

// =============================================================================
// CONVENIENCE METHODS FOR COMMON EVENTS
// =============================================================================

// AdminAttempt logs a complete passcode entry.
func (a *AuditLogger) AdminAttempt(accepted bool) {
	event := AuditAdminReject
	msg := "Passcode rejected"
	if accepted {
		event, msg = AuditAdminUnlock, "Admin unlocked"
	}
	a.Log(AuditEvent{EventType: event, Success: accepted, Message: msg})
}

// AdminLock logs the admin session ending.
func (a *AuditLogger) AdminLock() {
	a.Log(AuditEvent{EventType: AuditAdminLock, Success: true, Message: "Admin locked"})
}

// PasscodeSet logs a passcode change.
func (a *AuditLogger) PasscodeSet(success bool, errMsg string) {
	a.Log(AuditEvent{
		EventType: AuditPasscodeSet,
		Success:   success,
		Error:     errMsg,
		Message:   fmt.Sprintf("Passcode change (success=%v)", success),
	})
}

// ArticleOp logs an article change.
func (a *AuditLogger) ArticleOp(op AuditEventType, id int, title string) {
	a.Log(AuditEvent{
		EventType: op,
		Target:    fmt.Sprintf("article/%d", id),
		Success:   true,
		Fields:    map[string]interface{}{"title": title},
		Message:   fmt.Sprintf("Article %s: %d %q", op, id, title),
	})
}

// ProviderSelect logs a provider switch.
func (a *AuditLogger) ProviderSelect(provider string, persisted bool) {
	a.Log(AuditEvent{
		EventType: AuditProviderSelect,
		Target:    provider,
		Success:   true,
		Fields:    map[string]interface{}{"persisted": persisted},
		Message:   fmt.Sprintf("Provider selected: %s (persisted=%v)", provider, persisted),
	})
}

// GeoCall logs the end of one inference request.
func (a *AuditLogger) GeoCall(provider string, durationMs int64, errMsg string) {
	event := AuditGeoComplete
	if errMsg != "" {
		event = AuditGeoError
	}
	a.Log(AuditEvent{
		EventType:  event,
		Target:     provider,
		Success:    errMsg == "",
		DurationMs: durationMs,
		Error:      errMsg,
		Message:    fmt.Sprintf("Inference via %s (%dms, success=%v)", provider, durationMs, errMsg == ""),
	})
}

package notify

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/icewatch/ice-monitor/config"
	"github.com/icewatch/ice-monitor/logger"
)

// Filter is an optional operator-supplied JS hook that can suppress or
// annotate an outgoing alert. The script must define a function
// `filter(alert)` which returns false to drop the alert, an object with
// `subject`/`body` fields to override them, or anything else to pass
// the alert through unchanged.
type Filter struct {
	mu     sync.Mutex
	vm     *goja.Runtime
	filter goja.Callable
}

// NewFilterFromConfig builds the filter from the monitor configuration.
// Returns nil (no filter) when neither script code nor path is set.
func NewFilterFromConfig(cfg config.MonitorConfig) (*Filter, error) {
	var scriptCode string
	if cfg.FilterScriptCode != "" {
		scriptCode = cfg.FilterScriptCode
	} else if cfg.FilterScriptPath != "" {
		scriptBytes, err := os.ReadFile(cfg.FilterScriptPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load filter script %s: %v", cfg.FilterScriptPath, err)
		}
		scriptCode = string(scriptBytes)
	} else {
		return nil, nil
	}
	return newFilter(scriptCode)
}

func newFilter(scriptCode string) (*Filter, error) {
	vm := goja.New()

	_ = vm.Set("log", func(msg string) {
		logger.Info("[JS] %s", msg)
	})
	_ = vm.Set("formatDate", func(timestamp int64, format string) string {
		if format == "" {
			format = "2006-01-02 15:04:05"
		}
		return time.Unix(timestamp, 0).Format(format)
	})

	if _, err := vm.RunString(scriptCode); err != nil {
		return nil, fmt.Errorf("failed to run filter script: %v", err)
	}

	filterValue := vm.Get("filter")
	if filterValue == nil {
		return nil, fmt.Errorf("filter script does not define a 'filter' function")
	}
	filter, ok := goja.AssertFunction(filterValue)
	if !ok {
		return nil, fmt.Errorf("'filter' is not a function")
	}

	return &Filter{vm: vm, filter: filter}, nil
}

// Apply runs the hook on the alert. The second return value is false
// when the script suppressed the alert. Calls are serialized; a goja
// runtime is not safe for concurrent use.
func (f *Filter) Apply(alert Alert) (Alert, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	arg := f.vm.ToValue(map[string]interface{}{
		"deviceId":   alert.DeviceID,
		"deviceName": alert.DeviceName,
		"severity":   alert.Severity,
		"subject":    alert.Subject,
		"body":       alert.Body,
		"issues":     alert.Issues,
		"createdAt":  alert.CreatedAt.Unix(),
	})

	result, err := f.filter(goja.Undefined(), arg)
	if err != nil {
		return alert, true, fmt.Errorf("filter script failed: %v", err)
	}

	if b, ok := result.Export().(bool); ok && !b {
		return alert, false, nil
	}

	if obj, ok := result.Export().(map[string]interface{}); ok {
		if s, ok := obj["subject"].(string); ok && s != "" {
			alert.Subject = s
		}
		if s, ok := obj["body"].(string); ok && s != "" {
			alert.Body = s
		}
	}

	return alert, true, nil
}

// Package tools provides the capability registry for assistant tool calls.
//
// Connectors register their capabilities from init(); importing
// pkg/tools/all pulls in every built-in connector.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
)

// Definition describes a registered capability.
type Definition struct {
	// Name is the function name the model calls, unique in the registry.
	Name string
	// Label is the human-readable progress label shown while the call runs.
	Label string
	// Description is exposed to the model.
	Description string
	// Params describes the call arguments for the model.
	Params map[string]*schema.ParameterInfo

	// Timeout overrides the configured per-call timeout when non-zero.
	Timeout time.Duration
	// DependsOn lists capability names that must finish first when
	// requested in the same round.
	DependsOn []string
	// Dangerous marks capabilities with external side effects.
	Dangerous bool
	// SamplePrompt seeds suggested follow-up prompts for new chats.
	SamplePrompt string
}

// InvokeFunc executes a capability call. The returned string is fed back
// to the model as the tool result.
type InvokeFunc func(ctx context.Context, args json.RawMessage) (string, error)

// Capability is a definition bound to its implementation.
type Capability struct {
	Definition
	Invoke InvokeFunc
}

// FallbackLabel is used for tool calls with no registered label.
const FallbackLabel = "Working on it..."

type registry struct {
	mu   sync.RWMutex
	caps map[string]*Capability
}

var global = &registry{caps: make(map[string]*Capability)}

// Register adds a capability to the global registry.
// It panics on duplicate names so misconfiguration fails at startup.
func Register(def Definition, fn InvokeFunc) {
	if def.Name == "" {
		panic("tools: capability with empty name")
	}
	if fn == nil {
		panic(fmt.Sprintf("tools: capability %s has no implementation", def.Name))
	}
	global.mu.Lock()
	defer global.mu.Unlock()
	if _, exists := global.caps[def.Name]; exists {
		panic(fmt.Sprintf("tools: capability %s registered twice", def.Name))
	}
	global.caps[def.Name] = &Capability{Definition: def, Invoke: fn}
}

// Lookup returns the capability registered under name.
func Lookup(name string) (*Capability, bool) {
	global.mu.RLock()
	defer global.mu.RUnlock()
	cap, ok := global.caps[name]
	return cap, ok
}

// Label returns the progress label for name, falling back to a generic
// label for unknown capabilities.
func Label(name string) string {
	if cap, ok := Lookup(name); ok && cap.Label != "" {
		return cap.Label
	}
	return FallbackLabel
}

// List returns all registered definitions sorted by name.
func List() []Definition {
	global.mu.RLock()
	defer global.mu.RUnlock()
	defs := make([]Definition, 0, len(global.caps))
	for _, cap := range global.caps {
		defs = append(defs, cap.Definition)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// SamplePrompts returns the sample prompts of all capabilities that
// declare one, sorted by capability name.
func SamplePrompts() []string {
	var prompts []string
	for _, def := range List() {
		if def.SamplePrompt != "" {
			prompts = append(prompts, def.SamplePrompt)
		}
	}
	return prompts
}

// ToolInfos returns the registered capabilities as eino tool descriptions
// for binding to a chat model.
func ToolInfos() []*schema.ToolInfo {
	defs := List()
	infos := make([]*schema.ToolInfo, 0, len(defs))
	for _, def := range defs {
		infos = append(infos, &schema.ToolInfo{
			Name:        def.Name,
			Desc:        def.Description,
			ParamsOneOf: schema.NewParamsOneOfByParams(def.Params),
		})
	}
	return infos
}

// ---- Connector configuration ----

// Config carries the API keys and HTTP client shared by connectors.
type Config struct {
	FinnhubKey       string
	CoinMarketCapKey string
	WeatherAPIKey    string
	SearchKey        string
	SearchCX         string
	MailgunKey       string
	MailgunDomain    string
	MailFrom         string

	HTTPClient *http.Client
}

var (
	confMu sync.RWMutex
	conf   Config
)

// Init sets the shared connector configuration. Call once at startup
// before any capability is invoked.
func Init(c Config) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	confMu.Lock()
	conf = c
	confMu.Unlock()
}

// Conf returns the shared connector configuration.
func Conf() Config {
	confMu.RLock()
	defer confMu.RUnlock()
	c := conf
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	return c
}

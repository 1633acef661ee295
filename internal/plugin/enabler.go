package plugin

import (
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/felixgeelhaar/testcov/internal/options"
)

// EnvPrefix prefixes every environment variable read by plugin flags.
const EnvPrefix = "NOSE_"

// Enabler holds the base activation decision for a plugin: the
// --with-<name> flag, defaulting from NOSE_WITH_<NAME>.
type Enabler struct {
	name    string
	flag    bool
	enabled bool
}

// NewEnabler creates an Enabler for the plugin called name.
func NewEnabler(name string) *Enabler {
	return &Enabler{name: name}
}

// FlagName is the flag that switches the plugin on.
func (e *Enabler) FlagName() string { return "with-" + e.name }

// EnvName is the environment variable that switches the plugin on by default.
func (e *Enabler) EnvName() string {
	return EnvPrefix + "WITH_" + strings.ToUpper(strings.ReplaceAll(e.name, "-", "_"))
}

// Register adds the enable flag. An unparsable env value counts as false.
func (e *Enabler) Register(fs *pflag.FlagSet, env options.Env, help string) {
	def := false
	if raw, ok := env.Lookup(e.EnvName()); ok {
		def, _ = strconv.ParseBool(raw)
	}
	fs.BoolVar(&e.flag, e.FlagName(), def, help+" ["+e.EnvName()+"]")
}

// Configure captures the parsed flag as the base decision.
func (e *Enabler) Configure() {
	e.enabled = e.flag
}

// Disable forces the plugin off regardless of the flag.
func (e *Enabler) Disable() { e.enabled = false }

// Enabled reports the current decision.
func (e *Enabler) Enabled() bool { return e.enabled }

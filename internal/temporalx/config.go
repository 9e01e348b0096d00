package temporalx

import "time"

// Config is the optional durable dispatch backend. An empty Address
// disables it and the polling pool runs instead.
type Config struct {
	Address   string
	Namespace string
	TaskQueue string

	ClientCertPath string
	ClientKeyPath  string
	ClientCAPath   string

	DialTimeout           time.Duration
	DialMaxWait           time.Duration
	AutoRegisterNamespace bool
	RetentionDays         int
}

func (c Config) Enabled() bool { return c.Address != "" }

func (c Config) withDefaults() Config {
	if c.Namespace == "" {
		c.Namespace = "nearby"
	}
	if c.TaskQueue == "" {
		c.TaskQueue = "nearby-analysis"
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.DialMaxWait < 0 {
		c.DialMaxWait = 0
	}
	if c.RetentionDays < 1 || c.RetentionDays > 365 {
		c.RetentionDays = 7
	}
	return c
}

package callqueue

import "github.com/dennisdiepolder/monti/callrouter/internal/types"

// Config holds the configuration for a wait queue
type Config struct {
	ID      string          `yaml:"id" json:"id"`
	Name    string          `yaml:"name" json:"name"`
	Type    types.QueueType `yaml:"type" json:"type"`
	MaxSize int             `yaml:"max_size" json:"maxSize"`
	Active  bool            `yaml:"active" json:"active"`
	Agents  []string        `yaml:"agents" json:"agents"` // agent ids eligible to pull from this queue
}

// DefaultConfigs returns one active queue per queue type
func DefaultConfigs() []Config {
	return []Config{
		{ID: "emergency", Name: "Emergency", Type: types.QueueEmergency, MaxSize: 10, Active: true},
		{ID: "vip", Name: "VIP", Type: types.QueueVIP, MaxSize: 20, Active: true},
		{ID: "sales", Name: "Sales", Type: types.QueueSales, MaxSize: 50, Active: true},
		{ID: "support", Name: "Support", Type: types.QueueSupport, MaxSize: 50, Active: true},
		{ID: "general", Name: "General", Type: types.QueueGeneral, MaxSize: 100, Active: true},
	}
}

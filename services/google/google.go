package googlesvc

import (
	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/integration"
)

// New returns the simulated client unless real OAuth credentials are configured.
func New(conf *core.Config) integration.GoogleClient {
	if conf.Google.Simulated || conf.Google.ClientID == "" {
		return NewSimulatedClient(conf)
	}
	return NewAPIClient(conf)
}

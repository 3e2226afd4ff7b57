package healthchecker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/voxaide/switchboard/internal/config"
	"github.com/voxaide/switchboard/internal/logging"
	"go.uber.org/zap"
)

const probeTimeout = 10 * time.Second

// CheckTwilio fetches the account resource, the cheapest authenticated call
// Twilio offers.
func CheckTwilio() error {
	url := fmt.Sprintf("%s/Accounts/%s.json", config.Conf.TwilioBaseUrl, config.Conf.TwilioAccountSID)

	return probe("twilio", url, func(req *http.Request) {
		req.SetBasicAuth(config.Conf.TwilioAccountSID, config.Conf.TwilioAuthToken)
	})
}

// CheckVapi lists calls with a limit of one.
func CheckVapi() error {
	return probe("vapi", config.Conf.VapiBaseUrl+"/call?limit=1", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+config.Conf.VapiAPIKey)
	})
}

// CheckInsights lists models on the completion endpoint's host.
func CheckInsights() error {
	baseURL := config.Conf.OpenAIBaseUrl
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	return probe("insights", baseURL+"/models", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+config.Conf.OpenAIAPIKey)
	})
}

func probe(service, url string, authorize func(*http.Request)) error {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	authorize(req)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		logging.Logger.Info(service+" probe failed", zap.Error(err))
		return err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%s probe returned status %d", service, resp.StatusCode)
	}

	return nil
}

package messagingsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/trezcool/halaqat/core"
)

const defaultTelegramAPIURL = "https://api.telegram.org"

// telegramMessenger posts to the Bot API sendMessage method. Targets are chat ids.
type telegramMessenger struct {
	token   string
	apiURL  string
	client  *http.Client
	limiter *rate.Limiter
}

var _ core.Messenger = (*telegramMessenger)(nil)

func NewTelegramMessenger(conf *core.Config, client *http.Client) *telegramMessenger {
	apiURL := strings.TrimRight(conf.Messaging.TelegramAPIURL, "/")
	if apiURL == "" {
		apiURL = defaultTelegramAPIURL
	}
	limit := rate.Inf
	if conf.Messaging.TelegramRate > 0 {
		limit = rate.Limit(conf.Messaging.TelegramRate)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &telegramMessenger{
		token:   conf.Messaging.TelegramBotToken,
		apiURL:  apiURL,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
	}
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (m *telegramMessenger) Send(ctx context.Context, target, text string) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "waiting for telegram rate limiter")
	}

	body, err := json.Marshal(map[string]string{"chat_id": target, "text": text})
	if err != nil {
		return errors.Wrap(err, "encoding telegram message")
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", m.apiURL, m.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "building telegram request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := m.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "calling telegram") // the url holds the token: never log the request
	}
	defer func() { _ = res.Body.Close() }()

	var tr telegramResponse
	if err = json.NewDecoder(res.Body).Decode(&tr); err != nil {
		return errors.Wrapf(err, "decoding telegram response (status %d)", res.StatusCode)
	}
	if !tr.OK {
		return errors.Errorf("telegram refused the message: %s", tr.Description)
	}
	return nil
}

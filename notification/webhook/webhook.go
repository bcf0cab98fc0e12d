// Package webhook implements a notification sender that posts run events to
// a configured HTTP endpoint as JSON.
package webhook

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/Cobb-ukr/ai-test-agent/database"
	"github.com/Cobb-ukr/ai-test-agent/notification"
)

const defaultTimeout = 10 * time.Second

func init() {
	notification.RegisterSender("webhook", &sender{})
}

// Config is the configuration for the webhook sender, read from the
// notifier's inline params under the "webhook" key.
type Config struct {
	Endpoint string
	CertFile string
	KeyFile  string
	CAFile   string
	Timeout  time.Duration
}

type sender struct {
	endpoint string
	client   *http.Client
}

func (s *sender) Configure(config *notification.Config) (bool, error) {
	params, ok := config.Params["webhook"]
	if !ok {
		// Sender not configured; stay disabled.
		return false, nil
	}

	var cfg Config
	raw, err := yaml.Marshal(params)
	if err != nil {
		return false, fmt.Errorf("webhook: could not load configuration: %v", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return false, fmt.Errorf("webhook: could not load configuration: %v", err)
	}

	if cfg.Endpoint == "" {
		return false, fmt.Errorf("webhook: no endpoint specified")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	tlsConfig, err := loadTLSClientConfig(cfg)
	if err != nil {
		return false, errors.Wrap(err, "webhook: could not initialize client cert auth")
	}

	s.endpoint = cfg.Endpoint
	s.client = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
	}

	return true, nil
}

// envelope is the wire format of a delivery.
type envelope struct {
	Notification struct {
		Name   string `json:"Name"`
		RunID  int    `json:"RunID"`
		Status string `json:"Status,omitempty"`
	} `json:"Notification"`
}

func (s *sender) Send(n database.RunNotification) error {
	var payload envelope
	payload.Notification.Name = n.Name
	payload.Notification.RunID = n.RunID
	if n.Run != nil {
		payload.Notification.Status = string(n.Run.Status)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	resp, err := s.client.Post(s.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("webhook: got status %d, expected 200/201", resp.StatusCode)
	}

	return nil
}

// loadTLSClientConfig builds the client TLS configuration from the optional
// certificate files. A nil config is returned when none are set.
func loadTLSClientConfig(cfg Config) (*tls.Config, error) {
	if cfg.CertFile == "" && cfg.KeyFile == "" && cfg.CAFile == "" {
		return nil, nil
	}

	tlsConfig := &tls.Config{}

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, err
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if cfg.CAFile != "" {
		caCert, err := ioutil.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		caCertPool := x509.NewCertPool()
		caCertPool.AppendCertsFromPEM(caCert)
		tlsConfig.RootCAs = caCertPool
	}

	return tlsConfig, nil
}

package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// AdditionalOptions holds the per-task control flags configured on the pipeline model.
type AdditionalOptions struct {
	Enable                bool        `json:"enable"`
	ContinueWhenFailed    bool        `json:"continueWhenFailed"`
	RetryWhenFailed       bool        `json:"retryWhenFailed"`
	RetryCount            int         `json:"retryCount"`
	RetryCondition        string      `json:"retryCondition,omitempty"`
	TimeoutMinutes        int         `json:"timeout,omitempty"`
	PauseBeforeExec       bool        `json:"pauseBeforeExec"`
	SubscriptionPauseUser Subscribers `json:"subscriptionPauseUser,omitempty"`
}

// Subscribers is a list of user IDs. Older pipeline models store it as a single comma separated string,
// so both forms are accepted when decoding.
type Subscribers []string

func (s *Subscribers) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}

	if data[0] == '"' {
		var joined string
		if err := json.Unmarshal(data, &joined); err != nil {
			return err
		}
		var users []string
		for _, u := range strings.Split(joined, ",") {
			if u = strings.TrimSpace(u); u != "" {
				users = append(users, u)
			}
		}
		*s = users
		return nil
	}

	var users []string
	if err := json.Unmarshal(data, &users); err != nil {
		return err
	}
	*s = users
	return nil
}

// ParseAdditionalOptions decodes the raw additional options column. Empty and JSON null values decode
// to nil.
func ParseAdditionalOptions(raw []byte) (*AdditionalOptions, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var opts AdditionalOptions
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, err
	}
	return &opts, nil
}

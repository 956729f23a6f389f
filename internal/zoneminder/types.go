// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package zoneminder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// flexString accepts JSON strings, numbers and null. ZoneMinder returns ids
// and ports as strings on some versions and as numbers on others.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*f = flexString(n.String())
	return nil
}

// flexInt accepts JSON numbers and numeric strings.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(s), 64)
	if err != nil {
		return fmt.Errorf("expected numeric value, got %q", string(s))
	}
	if math.IsNaN(v) || v < math.MinInt64 || v >= math.MaxInt64 {
		return fmt.Errorf("numeric value %q out of range", string(s))
	}
	*f = flexInt(v)
	return nil
}

type loginResponse struct {
	AccessToken         string  `json:"access_token"`
	AccessTokenExpires  flexInt `json:"access_token_expires"`
	RefreshToken        string  `json:"refresh_token"`
	RefreshTokenExpires flexInt `json:"refresh_token_expires"`
	Version             string  `json:"version"`
	APIVersion          string  `json:"apiversion"`
}

type serversResponse struct {
	Servers []struct {
		Server server `json:"Server"`
	} `json:"servers"`
}

type server struct {
	ID        flexString `json:"Id"`
	Name      string     `json:"Name"`
	Protocol  string     `json:"Protocol"`
	Hostname  string     `json:"Hostname"`
	Port      flexString `json:"Port"`
	PathToAPI string     `json:"PathToApi"`
}

type monitorResponse struct {
	Monitor struct {
		Monitor struct {
			ID       flexString `json:"Id"`
			Name     string     `json:"Name"`
			ServerID flexString `json:"ServerId"`
		} `json:"Monitor"`
	} `json:"monitor"`
}

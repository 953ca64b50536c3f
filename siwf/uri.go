package siwf

import (
	"fmt"
	"net/url"
)

// URIParams are the sign-in parameters carried by a connect URI.
type URIParams struct {
	Domain         string `json:"domain"`
	Nonce          string `json:"nonce"`
	URI            string `json:"uri,omitempty"`
	NotBefore      string `json:"notBefore,omitempty"`
	ExpirationTime string `json:"expirationTime,omitempty"`
	RequestID      string `json:"requestId,omitempty"`
}

// URIResult is the outcome of ParseSignInURI. On failure Params holds whatever
// was parsed so the caller can log or display it.
type URIResult struct {
	ChannelToken string    `json:"channelToken,omitempty"`
	Params       URIParams `json:"params"`
	URI          string    `json:"uri"`
	IsError      bool      `json:"isError"`
	Error        string    `json:"error,omitempty"`
}

// ParseSignInURI reads the query of a farcaster://connect (or https relay)
// sign-in URI. Missing domain or nonce, or an unparseable URI, yield
// IsError=true.
func ParseSignInURI(raw string) URIResult {
	res := URIResult{URI: raw}

	u, err := url.Parse(raw)
	if err != nil {
		res.IsError = true
		res.Error = err.Error()
		return res
	}
	if u.Scheme == "" {
		res.IsError = true
		res.Error = "sign-in uri has no scheme"
		return res
	}

	q := u.Query()
	res.ChannelToken = q.Get("channelToken")
	res.Params = URIParams{
		Domain:         q.Get("domain"),
		Nonce:          q.Get("nonce"),
		URI:            firstNonEmpty(q.Get("siweUri"), q.Get("uri")),
		NotBefore:      q.Get("notBefore"),
		ExpirationTime: q.Get("expirationTime"),
		RequestID:      q.Get("requestId"),
	}

	var missing []string
	if res.Params.Domain == "" {
		missing = append(missing, "domain")
	}
	if res.Params.Nonce == "" {
		missing = append(missing, "nonce")
	}
	if len(missing) > 0 {
		res.IsError = true
		res.Error = fmt.Sprintf("sign-in uri missing required params: %v", missing)
	}
	return res
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

package polling

type PollingResult struct {
	HasDNSInteraction  bool `json:"hasDnsInteraction"`
	HasHTTPInteraction bool `json:"hasHttpInteraction"`
}

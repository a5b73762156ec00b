package recording

type StatusResponse struct {
	Status string `json:"status"`
}

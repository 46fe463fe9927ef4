package model

const (
	NetsResponseSuccess = "00"

	NetsTxnStatusSuccess = 1
	NetsTxnStatusFailed  = 2
)

type NetsQRRequest struct {
	TxnID        string `json:"txn_id"`
	AmtInDollars string `json:"amt_in_dollars"`
	NotifyMobile int    `json:"notify_mobile"`
}

type NetsQueryRequest struct {
	TxnRetrievalRef       string `json:"txn_retrieval_ref"`
	FrontendTimeoutStatus int    `json:"frontend_timeout_status"`
}

type NetsQRData struct {
	ResponseCode    string `json:"response_code"`
	TxnStatus       int    `json:"txn_status"`
	QRCode          string `json:"qr_code,omitempty"`
	TxnRetrievalRef string `json:"txn_retrieval_ref,omitempty"`
	NetworkStatus   int    `json:"network_status"`
	ErrorMessage    string `json:"error_message,omitempty"`
	Instruction     string `json:"instruction,omitempty"`
}

func (d *NetsQRData) Succeeded() bool {
	return d.ResponseCode == NetsResponseSuccess && d.TxnStatus == NetsTxnStatusSuccess
}

type NetsEnvelope struct {
	Result struct {
		Data NetsQRData `json:"data"`
	} `json:"result"`
}

package bitcoinclient

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// rpcRequest is the envelope the Bitcoin node expects: a legacy (pre-JSON-RPC-2.0)
// request shape still used by bitcoind's RPC server.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      string        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// rpcError is the error object a node includes in a response when the
// requested method itself failed (as opposed to a transport failure).
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("bitcoin rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
	ID     string          `json:"id"`
}

// newRequestID returns a short random hex token used only to correlate a
// request with its response in the logs -- the node does not require
// uniqueness or any particular format.
func newRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// call performs one JSON-RPC round trip, retrying only on a transport-level
// timeout. Each retry round doubles the per-attempt timeout, up to
// c.cfg.RequestMaxRetries rounds; any other failure (non-200, an RPC error
// object, or a malformed response body) is returned immediately without
// retrying.
func (c *Client) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	timeout := time.Duration(c.cfg.RequestTimeoutInMilliseconds) * time.Millisecond
	var lastErr error

	for attempt := 0; attempt <= c.cfg.RequestMaxRetries; attempt++ {
		requestCtx, cancel := context.WithTimeout(ctx, timeout)
		err := c.doCall(requestCtx, method, params, result)
		cancel()

		if err == nil {
			return nil
		}
		if !isTimeoutError(err) {
			return err
		}

		lastErr = err
		c.log.Warnf("request-timeout on %s (attempt %d/%d, timeout %s), retrying with doubled timeout",
			method, attempt+1, c.cfg.RequestMaxRetries+1, timeout)
		timeout *= 2
	}

	return errors.Wrapf(lastErr, "method %s: exhausted %d retries on request-timeout", method, c.cfg.RequestMaxRetries)
}

func (c *Client) doCall(ctx context.Context, method string, params []interface{}, result interface{}) error {
	id := newRequestID()
	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "1.0",
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return errors.Wrapf(err, "marshaling rpc request %s [id=%s]", method, id)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return errors.Wrapf(err, "building rpc request %s [id=%s]", method, id)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.cfg.BitcoinRPCUsername, c.cfg.BitcoinRPCPassword)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return errors.Wrapf(err, "sending rpc request %s [id=%s]", method, id)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return errors.Wrapf(err, "reading rpc response %s [id=%s]", method, id)
	}

	if httpResp.StatusCode != http.StatusOK {
		return errors.Errorf("rpc request %s [id=%s] failed with status %d: %s", method, id, httpResp.StatusCode, body)
	}

	var resp rpcResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return errors.Wrapf(err, "parsing rpc response %s [id=%s]", method, id)
	}
	if resp.Error != nil {
		return resp.Error
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return errors.Wrapf(err, "parsing rpc result %s [id=%s]", method, id)
	}
	return nil
}

// isTimeoutError reports whether err represents a transport-level timeout
// (context deadline, or a net.Error marked Timeout) as opposed to any other
// failure class, which must not be retried.
func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

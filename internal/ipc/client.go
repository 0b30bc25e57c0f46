package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) call(method string, req, resp any) error {
	return c.client.Call(serviceName+"."+method, req, resp)
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call("Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueAdd enqueues a video.
func (c *Client) QueueAdd(req QueueAddRequest) (*QueueAddResponse, error) {
	var resp QueueAddResponse
	if err := c.call("QueueAdd", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueList returns jobs optionally filtered by statuses.
func (c *Client) QueueList(statuses []string) (*QueueListResponse, error) {
	var resp QueueListResponse
	if err := c.call("QueueList", QueueListRequest{Statuses: statuses}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueDescribe returns details for a single job.
func (c *Client) QueueDescribe(id string) (*QueueDescribeResponse, error) {
	var resp QueueDescribeResponse
	if err := c.call("QueueDescribe", QueueDescribeRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VideoStatus reports where a video sits in the queue.
func (c *Client) VideoStatus(url string) (*VideoStatusResponse, error) {
	var resp VideoStatusResponse
	if err := c.call("VideoStatus", VideoRequest{VideoURL: url}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueuePause pauses the active job for a video.
func (c *Client) QueuePause(url string) (*JobResponse, error) {
	var resp JobResponse
	if err := c.call("QueuePause", VideoRequest{VideoURL: url}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueResume resumes the paused job for a video.
func (c *Client) QueueResume(url string) (*JobResponse, error) {
	var resp JobResponse
	if err := c.call("QueueResume", VideoRequest{VideoURL: url}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueRetry re-queues the failed job for a video.
func (c *Client) QueueRetry(url string) (*JobResponse, error) {
	var resp JobResponse
	if err := c.call("QueueRetry", VideoRequest{VideoURL: url}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueRemove evicts every job for a video, optionally purging its results.
func (c *Client) QueueRemove(url string, purge bool) (*QueueRemoveResponse, error) {
	var resp QueueRemoveResponse
	if err := c.call("QueueRemove", QueueRemoveRequest{VideoURL: url, Purge: purge}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueRetranslate redoes one batch of a stored result.
func (c *Client) QueueRetranslate(req QueueRetranslateRequest) (*QueueAddResponse, error) {
	var resp QueueAddResponse
	if err := c.call("QueueRetranslate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueCounts returns per-status job counts.
func (c *Client) QueueCounts() (*QueueCountsResponse, error) {
	var resp QueueCountsResponse
	if err := c.call("QueueCounts", QueueCountsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Result fetches the stored translation of a video or range.
func (c *Client) Result(url string, rng *Range) (*ResultResponse, error) {
	var resp ResultResponse
	if err := c.call("Result", ResultRequest{VideoURL: url, Range: rng}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// KeysSet replaces the provider key pool.
func (c *Client) KeysSet(keys []string) (*KeysSetResponse, error) {
	var resp KeysSetResponse
	if err := c.call("KeysSet", KeysSetRequest{Keys: keys}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// KeysList returns the masked provider keys.
func (c *Client) KeysList() (*KeysListResponse, error) {
	var resp KeysListResponse
	if err := c.call("KeysList", KeysListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SettingsGet returns the batch settings for new jobs.
func (c *Client) SettingsGet() (*SettingsResponse, error) {
	var resp SettingsResponse
	if err := c.call("SettingsGet", SettingsGetRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SettingsSet replaces the batch settings for new jobs.
func (c *Client) SettingsSet(settings BatchSettings) (*SettingsResponse, error) {
	var resp SettingsResponse
	if err := c.call("SettingsSet", SettingsSetRequest{Settings: settings}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.call("TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"

	"subtrans/internal/api"
	"subtrans/internal/daemon"
	"subtrans/internal/logging"
	"subtrans/internal/queue"
)

// serviceName prefixes every RPC method.
const serviceName = "Subtrans"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName(serviceName, srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"),
				)
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"),
		)
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = api.FromStatus(s.daemon.Status(), os.Getpid())
	return nil
}

func (s *service) QueueAdd(req QueueAddRequest, resp *QueueAddResponse) error {
	job, created, err := s.daemon.Enqueue(s.ctx, api.ToEnqueueRequest(req))
	if err != nil {
		return err
	}
	resp.Job = api.FromJob(job)
	resp.Created = created
	return nil
}

func (s *service) QueueList(req QueueListRequest, resp *QueueListResponse) error {
	statuses := make([]queue.Status, 0, len(req.Statuses))
	for _, status := range req.Statuses {
		parsed, ok := queue.ParseStatus(status)
		if !ok {
			return fmt.Errorf("unknown status %q", status)
		}
		statuses = append(statuses, parsed)
	}
	resp.Items = api.FromJobs(s.daemon.Items(statuses...))
	return nil
}

func (s *service) QueueDescribe(req QueueDescribeRequest, resp *QueueDescribeResponse) error {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return errors.New("job id is required")
	}
	job, ok := s.daemon.Job(id)
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	resp.Job = api.FromJob(job)
	return nil
}

func (s *service) VideoStatus(req VideoRequest, resp *VideoStatusResponse) error {
	*resp = api.FromVideoStatus(s.daemon.VideoStatus(req.VideoURL))
	return nil
}

func (s *service) QueuePause(req VideoRequest, resp *JobResponse) error {
	job, err := s.daemon.Pause(s.ctx, req.VideoURL)
	if err != nil {
		return err
	}
	resp.Job = api.FromJob(job)
	return nil
}

func (s *service) QueueResume(req VideoRequest, resp *JobResponse) error {
	job, err := s.daemon.Resume(s.ctx, req.VideoURL)
	if err != nil {
		return err
	}
	resp.Job = api.FromJob(job)
	return nil
}

func (s *service) QueueRetry(req VideoRequest, resp *JobResponse) error {
	job, err := s.daemon.Retry(s.ctx, req.VideoURL)
	if err != nil {
		return err
	}
	resp.Job = api.FromJob(job)
	return nil
}

func (s *service) QueueRemove(req QueueRemoveRequest, resp *QueueRemoveResponse) error {
	s.logger.Debug("queue remove requested", logging.String(logging.FieldVideoURL, req.VideoURL))
	summary, err := s.daemon.Remove(s.ctx, req.VideoURL, req.Purge)
	if err != nil {
		return err
	}
	resp.Jobs = summary.Jobs
	resp.Results = summary.Results
	return nil
}

func (s *service) QueueRetranslate(req QueueRetranslateRequest, resp *QueueAddResponse) error {
	job, created, err := s.daemon.Retranslate(s.ctx, req.VideoURL, api.ToRange(req.Range), req.BatchIndex)
	if err != nil {
		return err
	}
	resp.Job = api.FromJob(job)
	resp.Created = created
	return nil
}

func (s *service) QueueCounts(_ QueueCountsRequest, resp *QueueCountsResponse) error {
	resp.Counts = api.FromCounts(s.daemon.Counts())
	return nil
}

func (s *service) Result(req ResultRequest, resp *ResultResponse) error {
	result, err := s.daemon.Result(s.ctx, req.VideoURL, api.ToRange(req.Range))
	if err != nil {
		return err
	}
	*resp = api.FromResult(result)
	return nil
}

func (s *service) KeysSet(req KeysSetRequest, resp *KeysSetResponse) error {
	count, err := s.daemon.SetKeys(s.ctx, req.Keys)
	if err != nil {
		return err
	}
	resp.Count = count
	return nil
}

func (s *service) KeysList(_ KeysListRequest, resp *KeysListResponse) error {
	keys, err := s.daemon.Keys(s.ctx)
	if err != nil {
		return err
	}
	resp.Keys = keys
	return nil
}

func (s *service) SettingsGet(_ SettingsGetRequest, resp *SettingsResponse) error {
	settings, err := s.daemon.Settings(s.ctx)
	if err != nil {
		return err
	}
	resp.Settings = api.FromSettings(settings)
	return nil
}

func (s *service) SettingsSet(req SettingsSetRequest, resp *SettingsResponse) error {
	settings, err := s.daemon.SetSettings(s.ctx, api.ToSettings(req.Settings))
	if err != nil {
		return err
	}
	resp.Settings = api.FromSettings(settings)
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	if err != nil {
		return err
	}
	resp.Sent = sent
	resp.Message = message
	return nil
}

package connector

import "github.com/ceyewan/warden/xerrors"

var (
	ErrConfig        = xerrors.New("connector: invalid config")
	ErrConnection    = xerrors.New("connector: connection failed")
	ErrHealthCheck   = xerrors.New("connector: health check failed")
	ErrAlreadyClosed = xerrors.New("connector: already closed")
)

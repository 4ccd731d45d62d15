package cmd

import (
	"errors"
	"io/fs"

	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/compose"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/config"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/exitcode"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/external"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/external/policy"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/graph"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/lua/parse"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/safeio"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/sanitize"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/source"
)

// exitCodeFor maps a failure to its process exit code. The first matching
// category wins, so more specific types are listed first.
func exitCodeFor(err error) int {
	var (
		cfgErr        *config.Error
		parseErr      *parse.Error
		gotoErr       *sanitize.GotoError
		strictErr     *sanitize.StrictModeViolationError
		cycleErr      *graph.CycleError
		unresolvedErr *graph.UnresolvedDependencyError
		denyErr       *policy.DenyError
		rateErr       *external.RateLimitError
		netErr        *external.NetworkError
		pathErr       *fs.PathError
	)
	switch {
	case err == nil:
		return exitcode.Success
	case errors.As(err, &cfgErr),
		errors.Is(err, source.ErrMissingRoleFile),
		errors.Is(err, compose.ErrMissingRole),
		errors.Is(err, external.ErrInvalidDependency),
		errors.Is(err, safeio.ErrOutsideBase):
		return exitcode.ConfigError
	case errors.As(err, &parseErr):
		return exitcode.SyntaxError
	case errors.As(err, &gotoErr), errors.As(err, &strictErr):
		return exitcode.SanitizeError
	case errors.As(err, &cycleErr), errors.As(err, &unresolvedErr):
		return exitcode.GraphError
	case errors.As(err, &denyErr):
		return exitcode.PolicyError
	case errors.As(err, &rateErr), errors.As(err, &netErr), errors.Is(err, external.ErrNotFound):
		return exitcode.NetworkError
	case errors.As(err, &pathErr), errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return exitcode.FileSystemError
	default:
		return exitcode.GeneralError
	}
}

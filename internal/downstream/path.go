package downstream

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// PathResolver maps the path a request arrived on to the path it is forwarded to.
type PathResolver struct {
	stripPrefix string
	basePath    string
}

// NewPathResolver strips stripPrefix from inbound paths and joins the remainder onto the
// path component of downstreamURL.
func NewPathResolver(downstreamURL string, stripPrefix string) (PathResolver, error) {
	u, err := url.Parse(downstreamURL)
	if err != nil {
		return PathResolver{}, errors.Wrapf(err, "failed to parse downstream url %q", downstreamURL)
	}

	return PathResolver{
		stripPrefix: normalize(stripPrefix),
		basePath:    normalize(u.Path),
	}, nil
}

// Resolve is pure: the same inbound path always yields the same downstream path.
func (r PathResolver) Resolve(inbound string) string {
	rest := normalize(inbound)

	if r.stripPrefix != "/" {
		if rest == r.stripPrefix {
			rest = "/"
		} else if strings.HasPrefix(rest, r.stripPrefix+"/") {
			rest = rest[len(r.stripPrefix):]
		}
	}

	if r.basePath == "/" {
		return rest
	}

	if rest == "/" {
		return r.basePath
	}

	return r.basePath + rest
}

func normalize(p string) string {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}

	return p
}

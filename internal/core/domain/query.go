package domain

type QueryKind int

const (
	QueryPrimary QueryKind = iota
	QuerySecondaryWeb
	QueryOther
)

func (k QueryKind) String() string {
	switch k {
	case QueryPrimary:
		return "primary"
	case QuerySecondaryWeb:
		return "secondary-web"
	default:
		return "other"
	}
}

// ResultCode is the resolved outcome of a single query.
type ResultCode int

const (
	ResultSuccess ResultCode = iota
	ResultTransportError
	ResultRemoteError
	ResultParseError
)

func (r ResultCode) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultTransportError:
		return "transport error"
	case ResultRemoteError:
		return "remote error"
	case ResultParseError:
		return "parse error"
	default:
		return "unknown"
	}
}

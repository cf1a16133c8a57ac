package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"tradeday/internal/calendar"
	"tradeday/internal/domain"
	"tradeday/internal/metrics"
	"tradeday/internal/util"
)

// The calendar service uses protobuf well-known types as messages, so it
// needs no generated code:
//
//	IsOpen(StringValue date)                       -> BoolValue
//	NearestOpen(Struct{date, direction})           -> StringValue date
//	Stats(Empty)                                   -> Struct
//
// An empty date means "today" on the server's clock.
const (
	serviceName = "tradeday.v1.Calendar"

	methodIsOpen      = "/" + serviceName + "/IsOpen"
	methodNearestOpen = "/" + serviceName + "/NearestOpen"
	methodStats       = "/" + serviceName + "/Stats"
)

const transport = "grpc"

// CalendarServiceServer is the server API of the calendar gRPC service.
type CalendarServiceServer interface {
	IsOpen(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	NearestOpen(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error)
	Stats(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

// CalendarService implements CalendarServiceServer over a TradingCalendar.
type CalendarService struct {
	cal   *calendar.TradingCalendar
	clock util.Clock
	log   *slog.Logger
}

var _ CalendarServiceServer = (*CalendarService)(nil)

// NewCalendarService creates a CalendarService backed by cal.
func NewCalendarService(cal *calendar.TradingCalendar, clock util.Clock, log *slog.Logger) *CalendarService {
	if log == nil {
		log = slog.Default()
	}
	return &CalendarService{cal: cal, clock: clock, log: log}
}

// RegisterGRPC registers the service on the given gRPC server instance.
func (s *CalendarService) RegisterGRPC(gs *grpc.Server) {
	gs.RegisterService(&calendarServiceDesc, s)
}

func (s *CalendarService) date(raw string) (domain.Date, error) {
	if raw == "" {
		return s.cal.DateOf(s.clock.Now()), nil
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		return domain.Date{}, status.Error(codes.InvalidArgument, err.Error())
	}
	return d, nil
}

// IsOpen reports whether the requested date is a trading day.
func (s *CalendarService) IsOpen(_ context.Context, req *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	d, err := s.date(req.GetValue())
	if err != nil {
		metrics.ObserveQuery(transport, "is_open", metrics.ResultBadInput)
		return nil, err
	}

	open := s.cal.IsOpen(d)
	result := metrics.ResultClosed
	if open {
		result = metrics.ResultOpen
	}
	metrics.ObserveQuery(transport, "is_open", result)
	return wrapperspb.Bool(open), nil
}

// NearestOpen returns the nearest trading day from the requested date.
// Fields: "date" (string, optional) and "direction" (string, optional,
// "backward" by default). Absent or empty date means today; a value of any
// other kind is rejected.
func (s *CalendarService) NearestOpen(_ context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {
	fields := req.GetFields()

	raw, err := stringField(fields, "date")
	if err != nil {
		metrics.ObserveQuery(transport, "nearest_open", metrics.ResultBadInput)
		return nil, err
	}
	dirRaw, err := stringField(fields, "direction")
	if err != nil {
		metrics.ObserveQuery(transport, "nearest_open", metrics.ResultBadInput)
		return nil, err
	}

	d, err := s.date(raw)
	if err != nil {
		metrics.ObserveQuery(transport, "nearest_open", metrics.ResultBadInput)
		return nil, err
	}
	dir, err := calendar.ParseDirection(dirRaw)
	if err != nil {
		metrics.ObserveQuery(transport, "nearest_open", metrics.ResultBadInput)
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	found, err := s.cal.NearestOpen(d, dir)
	if errors.Is(err, calendar.ErrSearchExhausted) {
		metrics.ObserveQuery(transport, "nearest_open", metrics.ResultExhausted)
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	}
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	steps := d.DaysUntil(found)
	if steps < 0 {
		steps = -steps
	}
	metrics.ObserveQuery(transport, "nearest_open", metrics.ResultFound)
	metrics.ObserveSearch(dir.String(), steps)
	return wrapperspb.String(found.String()), nil
}

// stringField returns the string value of key, or "" when key is absent. A
// present non-string value is an InvalidArgument error.
func stringField(fields map[string]*structpb.Value, key string) (string, error) {
	v, ok := fields[key]
	if !ok {
		return "", nil
	}
	sv, isString := v.GetKind().(*structpb.Value_StringValue)
	if !isString {
		return "", status.Errorf(codes.InvalidArgument, "%s must be a string, got %T", key, v.GetKind())
	}
	return sv.StringValue, nil
}

// Stats returns the exception-list load summary.
func (s *CalendarService) Stats(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st := s.cal.Exceptions().Stats()
	out, err := structpb.NewStruct(map[string]any{
		"market":    string(s.cal.Market()),
		"records":   st.Records,
		"closed":    st.Closed,
		"open":      st.Open,
		"skipped":   st.Skipped,
		"conflicts": st.Conflicts,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// LoggingInterceptor logs every unary call with its duration and status code.
func LoggingInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Debug("grpc call",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"elapsed", time.Since(start),
		)
		return resp, err
	}
}

// ---------------------------------------------------------------------------
// Service descriptor
// ---------------------------------------------------------------------------

var calendarServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*CalendarServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "IsOpen", Handler: isOpenHandler},
		{MethodName: "NearestOpen", Handler: nearestOpenHandler},
		{MethodName: "Stats", Handler: statsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tradeday/calendar",
}

func isOpenHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CalendarServiceServer).IsOpen(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodIsOpen}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CalendarServiceServer).IsOpen(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func nearestOpenHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CalendarServiceServer).NearestOpen(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodNearestOpen}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CalendarServiceServer).NearestOpen(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func statsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CalendarServiceServer).Stats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodStats}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CalendarServiceServer).Stats(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

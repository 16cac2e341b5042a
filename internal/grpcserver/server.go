// Package grpcserver exposes the article operations over gRPC with a JSON
// wire codec, next to the standard health service.
package grpcserver

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"collabwiki/internal/apperr"
	"collabwiki/internal/article"
	"collabwiki/internal/logger"
	"collabwiki/pkg/models"
)

const ServiceName = "collabwiki.ArticleService"

// Articles is the subset of article.Service served over gRPC.
type Articles interface {
	Merge(ctx context.Context, req article.MergeRequest) (*article.MergeResult, error)
	Summarize(ctx context.Context, req article.SummaryRequest) (*article.SummaryResult, error)
	History(ctx context.Context, articleID, sectionTitle string) (*article.SectionHistory, error)
	Create(ctx context.Context, req article.CreateRequest) (*models.Article, error)
	GetByTitle(ctx context.Context, title string) (*models.Article, error)
	List(ctx context.Context) ([]models.Article, error)
}

var _ Articles = (*article.Service)(nil)

type HistoryRequest struct {
	ArticleID    string `json:"article_id"`
	SectionTitle string `json:"section_title"`
}

type GetArticleRequest struct {
	Title string `json:"title"`
}

type ListArticlesRequest struct{}

type ListArticlesResponse struct {
	Items []models.Article `json:"items"`
}

// ArticleServiceServer is the server API registered under ServiceName.
type ArticleServiceServer interface {
	MergeContribution(context.Context, *article.MergeRequest) (*article.MergeResult, error)
	SummarizeContribution(context.Context, *article.SummaryRequest) (*article.SummaryResult, error)
	GetSectionHistory(context.Context, *HistoryRequest) (*article.SectionHistory, error)
	CreateArticle(context.Context, *article.CreateRequest) (*models.Article, error)
	GetArticleByTitle(context.Context, *GetArticleRequest) (*models.Article, error)
	ListArticles(context.Context, *ListArticlesRequest) (*ListArticlesResponse, error)
}

type Server struct {
	Articles Articles
}

func NewServer(articles Articles) *Server {
	return &Server{Articles: articles}
}

func (s *Server) MergeContribution(ctx context.Context, req *article.MergeRequest) (*article.MergeResult, error) {
	res, err := s.Articles.Merge(ctx, *req)
	if err != nil {
		return nil, toStatus(err)
	}
	return res, nil
}

func (s *Server) SummarizeContribution(ctx context.Context, req *article.SummaryRequest) (*article.SummaryResult, error) {
	res, err := s.Articles.Summarize(ctx, *req)
	if err != nil {
		return nil, toStatus(err)
	}
	return res, nil
}

func (s *Server) GetSectionHistory(ctx context.Context, req *HistoryRequest) (*article.SectionHistory, error) {
	res, err := s.Articles.History(ctx, req.ArticleID, req.SectionTitle)
	if err != nil {
		return nil, toStatus(err)
	}
	return res, nil
}

func (s *Server) CreateArticle(ctx context.Context, req *article.CreateRequest) (*models.Article, error) {
	res, err := s.Articles.Create(ctx, *req)
	if err != nil {
		return nil, toStatus(err)
	}
	return res, nil
}

func (s *Server) GetArticleByTitle(ctx context.Context, req *GetArticleRequest) (*models.Article, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, status.Error(codes.InvalidArgument, "title required")
	}
	res, err := s.Articles.GetByTitle(ctx, req.Title)
	if err != nil {
		return nil, toStatus(err)
	}
	return res, nil
}

func (s *Server) ListArticles(ctx context.Context, _ *ListArticlesRequest) (*ListArticlesResponse, error) {
	items, err := s.Articles.List(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ListArticlesResponse{Items: items}, nil
}

// ServiceDesc describes ArticleService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ArticleServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("MergeContribution", ArticleServiceServer.MergeContribution),
		unary("SummarizeContribution", ArticleServiceServer.SummarizeContribution),
		unary("GetSectionHistory", ArticleServiceServer.GetSectionHistory),
		unary("CreateArticle", ArticleServiceServer.CreateArticle),
		unary("GetArticleByTitle", ArticleServiceServer.GetArticleByTitle),
		unary("ListArticles", ArticleServiceServer.ListArticles),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "collabwiki/article.proto",
}

func unary[Req, Resp any](name string, call func(ArticleServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ArticleServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ArticleServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// New builds a grpc.Server with ArticleService and the health service
// registered.
func New(articles Articles, log *logger.Logger) (*grpc.Server, *health.Server) {
	if log == nil {
		log = logger.Nop()
	}
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(log.With("component", "grpc"))))
	gs.RegisterService(&ServiceDesc, NewServer(articles))

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return gs, hs
}

func loggingInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		if code == codes.OK || code == codes.InvalidArgument || code == codes.NotFound || code == codes.AlreadyExists {
			log.Info("rpc", "method", info.FullMethod, "code", code.String(), "duration", time.Since(start))
		} else {
			log.Error("rpc failed", "method", info.FullMethod, "code", code.String(), "duration", time.Since(start))
		}
		return resp, err
	}
}

func toStatus(err error) error {
	var code codes.Code
	switch apperr.KindOf(err) {
	case apperr.KindInvalidRequest:
		code = codes.InvalidArgument
	case apperr.KindNotFound:
		code = codes.NotFound
	case apperr.KindConflict:
		code = codes.AlreadyExists
	case apperr.KindUpstreamUnavailable:
		code = codes.Unavailable
	case apperr.KindUnauthorized:
		code = codes.Unauthenticated
	default:
		code = codes.Internal
	}
	return status.Error(code, apperr.Message(err))
}

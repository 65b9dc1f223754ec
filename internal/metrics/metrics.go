// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AuthCollector は認証・認可イベントのメトリクス収集インターフェース。
// 認証サービスとguardゲートから利用する。
type AuthCollector interface {
	RecordSignUp()
	RecordSignIn(method string)
	RecordSignInFailure(reason string)
	RecordRefreshRotation()
	RecordRefreshRejection()
	RecordSignOut()
	RecordAuthzDenial(gate string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	signUps          prometheus.Counter
	signIns          *prometheus.CounterVec
	signInFailures   *prometheus.CounterVec
	refreshRotations prometheus.Counter
	refreshRejected  prometheus.Counter
	signOuts         prometheus.Counter
	authzDenials     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signUps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "todoman_signups_total",
			Help: "サインアップ成功の合計数",
		}),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todoman_signins_total",
			Help: "認証方式別のサインイン成功数",
		}, []string{"method"}),
		signInFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todoman_signin_failures_total",
			Help: "失敗理由別のサインイン失敗数",
		}, []string{"reason"}),
		refreshRotations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "todoman_refresh_rotations_total",
			Help: "リフレッシュトークンローテーション成功の合計数",
		}),
		refreshRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "todoman_refresh_rejected_total",
			Help: "拒否されたリフレッシュトークン提示の合計数",
		}),
		signOuts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "todoman_signouts_total",
			Help: "トークン失効を伴うサインアウトの合計数",
		}),
		authzDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todoman_authz_denials_total",
			Help: "ゲート別の認可拒否数",
		}, []string{"gate"}),
	}

	reg.MustRegister(
		c.signUps,
		c.signIns,
		c.signInFailures,
		c.refreshRotations,
		c.refreshRejected,
		c.signOuts,
		c.authzDenials,
	)

	return c
}

// RecordSignUp はサインアップ成功を記録する。
func (c *Collector) RecordSignUp() {
	c.signUps.Inc()
}

// RecordSignIn は認証方式別のサインイン成功を記録する。
func (c *Collector) RecordSignIn(method string) {
	c.signIns.WithLabelValues(method).Inc()
}

// RecordSignInFailure は失敗理由別のサインイン失敗を記録する。
func (c *Collector) RecordSignInFailure(reason string) {
	c.signInFailures.WithLabelValues(reason).Inc()
}

// RecordRefreshRotation はローテーション成功を記録する。
func (c *Collector) RecordRefreshRotation() {
	c.refreshRotations.Inc()
}

// RecordRefreshRejection はリフレッシュトークンの拒否を記録する。
// リプレイ検出と期限切れ・偽造を区別せずに数える。
func (c *Collector) RecordRefreshRejection() {
	c.refreshRejected.Inc()
}

// RecordSignOut はサインアウトを記録する。
func (c *Collector) RecordSignOut() {
	c.signOuts.Inc()
}

// RecordAuthzDenial はゲート別の認可拒否を記録する。
func (c *Collector) RecordAuthzDenial(gate string) {
	c.authzDenials.WithLabelValues(gate).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

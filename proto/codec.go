// Package proto 定義 ledger.v1.LedgerService 的訊息與服務描述
//
// 訊息是一般的 Go struct，透過註冊在 gRPC 上的 JSON codec 傳輸；
// client 需要帶上 CallContentSubtype(CodecName) (見 DialOptions)。
package proto

import (
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName gRPC content-subtype，對應 application/grpc+json
const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// DialOptions 讓 client 預設以 JSON codec 呼叫
func DialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}
}

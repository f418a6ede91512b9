package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"rowmatch/internal/exporter"
	"rowmatch/internal/matching"
	"rowmatch/pkg/contracts/domain"
)

func writeInputs(t *testing.T) (dir, data, lookup string) {
	t.Helper()
	dir = t.TempDir()
	data = filepath.Join(dir, "data.csv")
	lookup = filepath.Join(dir, "lookup.csv")
	require.NoError(t, os.WriteFile(data, []byte("姓名,编号\n张三,1\n李四,2\n张三,1\n王五,4\n"), 0644))
	require.NoError(t, os.WriteFile(lookup, []byte("name,id\n张三,1\n 李四 ,2\n赵六,3\n"), 0644))
	return dir, data, lookup
}

func TestRunWithFlags(t *testing.T) {
	dir, data, lookup := writeInputs(t)
	out := filepath.Join(dir, "report.xlsx")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"-data", data, "-lookup", lookup,
		"-data-cols", "姓名,编号", "-lookup-cols", "0,1",
		"-out", out, "-csv", "-no-progress",
	}, strings.NewReader(""), &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	text := stdout.String()
	assert.Contains(t, text, "数据表预览 (共4行)")
	assert.Contains(t, text, "数据表[编号] <-> 查找表[id]")
	assert.Contains(t, text, "匹配成功行数: 1 (33.3%)")
	assert.Contains(t, text, "重复匹配行数: 1 (33.3%)")
	assert.Contains(t, text, "结果已保存到: "+out)
	assert.Contains(t, text, "程序执行完毕！")
	assert.NotContains(t, text, "请输入文件路径")

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(exporter.LookupSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, domain.LabelDuplicate, rows[1][2])

	assert.FileExists(t, filepath.Join(dir, "report_"+exporter.DataSheet+".csv"))
	assert.FileExists(t, filepath.Join(dir, "report_"+exporter.LookupSheet+".csv"))
}

func TestRunInteractive(t *testing.T) {
	dir, data, lookup := writeInputs(t)
	out := filepath.Join(dir, "interactive.xlsx")

	answers := strings.Join([]string{
		`"` + data + `"`,
		"",
		lookup,
		"姓名, 编号",
		"name,id",
	}, "\n") + "\n"

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-out", out}, strings.NewReader(answers), &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	text := stdout.String()
	assert.Equal(t, 2, strings.Count(text, "查找表文件路径: "), "an empty answer is asked again")
	assert.Contains(t, text, "请选择要比较的列")
	assert.Contains(t, text, "未匹配行数: 1 (33.3%)")
	assert.Contains(t, stderr.String(), "比对中")
	assert.FileExists(t, out)
}

func TestRunErrors(t *testing.T) {
	dir, data, lookup := writeInputs(t)

	tests := []struct {
		name    string
		args    []string
		stdin   string
		wantErr error
		wantMsg string
	}{
		{
			name:    "uneven columns",
			args:    []string{"-data", data, "-lookup", lookup, "-data-cols", "0,1", "-lookup-cols", "0"},
			wantErr: matching.ErrColumnCountMismatch,
		},
		{
			name:    "unknown column",
			args:    []string{"-data", data, "-lookup", lookup, "-data-cols", "姓名", "-lookup-cols", "missing"},
			wantErr: matching.ErrInvalidColumn,
		},
		{
			name:    "input ends early",
			args:    []string{"-data", data},
			wantMsg: "unexpected EOF",
		},
		{
			name:    "missing file",
			args:    []string{"-data", filepath.Join(dir, "nope.csv"), "-lookup", lookup, "-data-cols", "0", "-lookup-cols", "0"},
			wantMsg: "nope.csv",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(context.Background(), append(tt.args, "-no-progress", "-out", filepath.Join(dir, "x.xlsx")),
				strings.NewReader(tt.stdin), &stdout, &stderr)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestRunVersion(t *testing.T) {
	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-version"}, strings.NewReader(""), &stdout, &bytes.Buffer{}))
	assert.Contains(t, stdout.String(), "rowmatch v")
}
